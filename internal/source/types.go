package source

import "time"

// Status thresholds and eviction timing
const (
	activeThreshold = 3 * time.Second
	idleThreshold   = 10 * time.Second
	evictionTimeout = 60 * time.Second
)

// Frame rate warning thresholds (frames per second)
const (
	lowFPSThreshold  = 20
	highFPSThreshold = 44
)

// Protocol identifies which wire protocol a source was observed on.
type Protocol string

const (
	ProtocolArtNet Protocol = "artnet"
	ProtocolSACN   Protocol = "sacn"
)

// Status describes how recently a source has been heard from.
type Status string

const (
	StatusActive Status = "active" // packet within the last 3 seconds
	StatusIdle   Status = "idle"   // silent for 3-10 seconds
	StatusStale  Status = "stale"  // silent for 10+ seconds
)

// statusFor derives the status from elapsed silence.
func statusFor(elapsed time.Duration) Status {
	switch {
	case elapsed < activeThreshold:
		return StatusActive
	case elapsed < idleThreshold:
		return StatusIdle
	default:
		return StatusStale
	}
}

// Direction records which way traffic has been observed flowing for a
// source. It only ever escalates: once both directions have been seen
// the source stays Both.
type Direction string

const (
	DirectionUnknown   Direction = "unknown"
	DirectionSending   Direction = "sending"
	DirectionReceiving Direction = "receiving"
	DirectionBoth      Direction = "both"
)

// merge escalates the direction with a new observation.
func (d Direction) merge(observed Direction) Direction {
	if observed == DirectionUnknown || observed == d || d == DirectionBoth {
		return d
	}
	if d == DirectionUnknown {
		return observed
	}
	return DirectionBoth
}

// FPSWarning flags frame rates outside the normal refresh range.
type FPSWarning string

const (
	FPSWarningNone FPSWarning = ""
	FPSWarningLow  FPSWarning = "low"
	FPSWarningHigh FPSWarning = "high"
)

func fpsWarningFor(fps float64) FPSWarning {
	switch {
	case fps > highFPSThreshold:
		return FPSWarningHigh
	case fps > 0 && fps < lowFPSThreshold:
		return FPSWarningLow
	default:
		return FPSWarningNone
	}
}

// NetworkSource is the externally visible snapshot of a discovered device.
type NetworkSource struct {
	ID         string     `json:"id"`
	IP         string     `json:"ip"`
	Name       string     `json:"name"`
	Protocol   Protocol   `json:"protocol"`
	Universes  []uint16   `json:"universes"` // sorted, deduplicated
	Status     Status     `json:"status"`
	Direction  Direction  `json:"direction"`
	FPS        float64    `json:"fps"`
	FPSWarning FPSWarning `json:"fps_warning,omitempty"`

	PacketCount       uint64  `json:"packet_count"`
	FirstSeen         uint64  `json:"first_seen"` // unix ms
	LastSeen          uint64  `json:"last_seen"`  // unix ms
	PacketLossPercent float64 `json:"packet_loss_percent"`
	LatencyJitterMS   float64 `json:"latency_jitter_ms"`

	// Universes also claimed by another source, recomputed every sweep
	DuplicateUniverses []uint16 `json:"duplicate_universes,omitempty"`

	// Art-Net specific
	ArtNetShortName string `json:"artnet_short_name,omitempty"`
	ArtNetLongName  string `json:"artnet_long_name,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`

	// sACN specific
	SACNCID      string `json:"sacn_cid,omitempty"`
	SACNPriority *uint8 `json:"sacn_priority,omitempty"`
}
