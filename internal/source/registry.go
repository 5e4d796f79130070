// Package source tracks every device observed on the lighting network and
// computes its live diagnostics.
package source

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"lxmonitor/internal/sacn"
)

// entry pairs a source snapshot with the trackers that feed it.
type entry struct {
	src        NetworkSource
	lastPacket time.Time
	fps        fpsCounter
	seq        sequenceTracker
	lat        latencyTracker
}

// Registry is the table of discovered sources. It is written to by every
// ingestion path and swept once a second by the maintenance task.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// UpdateArtNet records an Art-Net observation. Entries are keyed by IP.
// mac is optional (6 bytes when present); seq is nil for packets that
// carry no sequence number, such as ArtPollReply.
func (r *Registry) UpdateArtNet(ip net.IP, shortName, longName string, mac []byte, universes []uint16, dir Direction, seq *uint8) {
	r.updateArtNetAt(time.Now(), ip, shortName, longName, mac, universes, dir, seq)
}

func (r *Registry) updateArtNetAt(now time.Time, ip net.IP, shortName, longName string, mac []byte, universes []uint16, dir Direction, seq *uint8) {
	id := fmt.Sprintf("artnet-%s", ip)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = newEntry(now, NetworkSource{
			ID:       id,
			IP:       ip.String(),
			Protocol: ProtocolArtNet,
		})
		r.entries[id] = e
	}

	if shortName != "" {
		e.src.ArtNetShortName = shortName
	}
	if longName != "" {
		e.src.ArtNetLongName = longName
	}
	if len(mac) == 6 {
		e.src.MACAddress = fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
			mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	}
	e.src.Name = firstNonEmpty(e.src.ArtNetLongName, e.src.ArtNetShortName, "ArtNet @ "+e.src.IP)

	e.touch(now, dir, seq)
	e.addUniverses(universes)
}

// UpdateSACN records an sACN observation. Entries are keyed by the textual
// CID, except capture-inferred receivers (zero CID, which is never on the
// wire for a pure receiver) which are keyed by IP instead.
func (r *Registry) UpdateSACN(ip net.IP, name string, cid [16]byte, priority uint8, universe uint16, dir Direction, seq *uint8) {
	r.updateSACNAt(time.Now(), ip, name, cid, priority, universe, dir, seq)
}

func (r *Registry) updateSACNAt(now time.Time, ip net.IP, name string, cid [16]byte, priority uint8, universe uint16, dir Direction, seq *uint8) {
	inferred := cid == [16]byte{}

	var id string
	if inferred {
		id = fmt.Sprintf("sacn-%s", ip)
	} else {
		id = fmt.Sprintf("sacn-%s", sacn.CIDString(cid))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = newEntry(now, NetworkSource{
			ID:       id,
			IP:       ip.String(),
			Protocol: ProtocolSACN,
		})
		if !inferred {
			e.src.SACNCID = sacn.CIDString(cid)
		}
		r.entries[id] = e
	}

	if name != "" {
		e.src.Name = name
	} else if e.src.Name == "" {
		e.src.Name = "sACN @ " + e.src.IP
	}
	if !inferred {
		p := priority
		e.src.SACNPriority = &p
	}

	e.touch(now, dir, seq)
	e.addUniverses([]uint16{universe})
}

// Sources returns a snapshot of every tracked source.
func (r *Registry) Sources() []NetworkSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NetworkSource, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracked sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep recomputes every source's status, rate, loss, jitter and duplicate
// flags, and evicts sources that have been silent for a minute. Called at
// 1 Hz by the maintenance task.
func (r *Registry) Sweep() {
	r.sweepAt(time.Now())
}

func (r *Registry) sweepAt(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if now.Sub(e.lastPacket) >= evictionTimeout {
			delete(r.entries, id)
			continue
		}
		e.src.Status = statusFor(now.Sub(e.lastPacket))
		e.src.FPS = e.fps.fps(now)
		e.src.FPSWarning = fpsWarningFor(e.src.FPS)
		e.src.PacketLossPercent = e.seq.lossPercent()
		e.src.LatencyJitterMS = e.lat.jitterMS()
	}

	// Rebuild the universe claim index from scratch; duplicate flags carry
	// no history across sweeps.
	claims := make(map[uint16]int)
	for _, e := range r.entries {
		for _, u := range e.src.Universes {
			claims[u]++
		}
	}
	for _, e := range r.entries {
		e.src.DuplicateUniverses = nil
		for _, u := range e.src.Universes {
			if claims[u] >= 2 {
				e.src.DuplicateUniverses = append(e.src.DuplicateUniverses, u)
			}
		}
	}
}

func newEntry(now time.Time, src NetworkSource) *entry {
	src.Status = StatusActive
	src.Direction = DirectionUnknown
	src.FirstSeen = uint64(now.UnixMilli())
	src.LastSeen = src.FirstSeen
	return &entry{src: src, lastPacket: now}
}

func (e *entry) touch(now time.Time, dir Direction, seq *uint8) {
	e.lastPacket = now
	e.fps.record(now)
	e.lat.record(now)
	if seq != nil {
		e.seq.record(now, *seq)
	}
	e.src.PacketCount++
	e.src.LastSeen = uint64(now.UnixMilli())
	e.src.FPS = e.fps.fps(now)
	e.src.Status = StatusActive
	e.src.Direction = e.src.Direction.merge(dir)
}

// addUniverses merges universes into the entry's sorted, deduplicated set.
func (e *entry) addUniverses(universes []uint16) {
	changed := false
	for _, u := range universes {
		if !containsUniverse(e.src.Universes, u) {
			e.src.Universes = append(e.src.Universes, u)
			changed = true
		}
	}
	if changed {
		sort.Slice(e.src.Universes, func(i, j int) bool {
			return e.src.Universes[i] < e.src.Universes[j]
		})
	}
}

func (e *entry) snapshot() NetworkSource {
	src := e.src
	src.Universes = append([]uint16(nil), e.src.Universes...)
	src.DuplicateUniverses = append([]uint16(nil), e.src.DuplicateUniverses...)
	if e.src.SACNPriority != nil {
		p := *e.src.SACNPriority
		src.SACNPriority = &p
	}
	return src
}

func containsUniverse(universes []uint16, u uint16) bool {
	for _, existing := range universes {
		if existing == u {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
