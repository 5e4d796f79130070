// Package config loads the monitor's TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full monitor configuration. Every field has a usable
// default; a config file only needs the keys it wants to change.
type Config struct {
	// Listen is the local address both protocol sockets bind to.
	Listen string `toml:"listen"`

	// ArtNet and SACN enable the per-protocol listeners. Both default to
	// true; disabling one skips its socket entirely.
	ArtNet bool `toml:"listen_artnet"`
	SACN   bool `toml:"listen_sacn"`

	// MulticastUniverses is how many sACN universes get an eager multicast
	// join (1..N). Traffic on higher universes is only visible as unicast
	// or through the sniffer.
	MulticastUniverses uint16 `toml:"multicast_universes"`

	// CaptureInterface preselects the promiscuous capture device. Capture
	// still has to be enabled explicitly.
	CaptureInterface string `toml:"capture_interface"`

	Log LogConfig `toml:"log"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		Listen:             "0.0.0.0",
		ArtNet:             true,
		SACN:               true,
		MulticastUniverses: 100,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is only
// an error when the caller explicitly asked for that path.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = Default().Listen
	}
	if cfg.MulticastUniverses == 0 {
		cfg.MulticastUniverses = Default().MulticastUniverses
	}

	return cfg, nil
}
