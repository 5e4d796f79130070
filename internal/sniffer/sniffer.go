// Package sniffer recovers lighting traffic invisible to normal sockets
// by capturing in promiscuous mode. Seeing both sender and receiver of a
// datagram is the only way to discover pure receivers (fixtures).
package sniffer

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"lxmonitor/internal/artnet"
	"lxmonitor/internal/dmx"
	"lxmonitor/internal/listener"
	"lxmonitor/internal/sacn"
	"lxmonitor/internal/source"
)

// Status is the externally visible capture state.
type Status struct {
	Enabled         bool   `json:"enabled"`
	Interface       string `json:"interface,omitempty"`
	DriverAvailable bool   `json:"driver_available"`
	PacketsCaptured uint64 `json:"packets_captured"`
	LastError       string `json:"last_error,omitempty"`
}

// Manager runs at most one capture loop and feeds the same registry,
// store and bus as the socket listeners.
type Manager struct {
	engine   Engine
	registry *source.Registry
	store    *dmx.Store
	bus      *listener.Bus
	log      *slog.Logger

	mu       sync.Mutex
	enabled  bool
	iface    string
	lastErr  string
	stop     atomic.Bool
	captured atomic.Uint64
}

// NewManager creates a capture manager over the given engine.
func NewManager(engine Engine, registry *source.Registry, store *dmx.Store, bus *listener.Bus, log *slog.Logger) *Manager {
	return &Manager{
		engine:   engine,
		registry: registry,
		store:    store,
		bus:      bus,
		log:      log,
	}
}

// Status reports the current capture state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Enabled:         m.enabled,
		Interface:       m.iface,
		DriverAvailable: m.engine.Available(),
		PacketsCaptured: m.captured.Load(),
		LastError:       m.lastErr,
	}
}

// Interfaces lists capturable devices.
func (m *Manager) Interfaces() ([]Interface, error) {
	return m.engine.Interfaces()
}

// Enable starts capture on the named interface, or on the first available
// one when name is empty. Configuration problems are rejected here,
// synchronously, with nothing mutated.
func (m *Manager) Enable(name string) error {
	if !m.engine.Available() {
		return ErrDriverUnavailable
	}

	if name == "" {
		interfaces, err := m.engine.Interfaces()
		if err != nil {
			return err
		}
		if len(interfaces) == 0 {
			return ErrNoInterfaces
		}
		name = interfaces[0].Name
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return ErrAlreadyRunning
	}

	handle, err := m.engine.Open(name)
	if err != nil {
		m.lastErr = err.Error()
		return err
	}

	m.enabled = true
	m.iface = name
	m.lastErr = ""
	m.stop.Store(false)
	m.captured.Store(0)

	m.log.Info("capture started", "interface", name)
	go m.run(handle)
	return nil
}

// Disable requests the capture loop to stop. The request is advisory and
// is observed within one capture timeout.
func (m *Manager) Disable() {
	m.stop.Store(true)
}

// run is the blocking capture loop; it owns the handle for its lifetime.
func (m *Manager) run(handle Handle) {
	defer func() {
		handle.Close()
		m.mu.Lock()
		m.enabled = false
		m.mu.Unlock()
	}()

	for {
		if m.stop.Load() {
			m.log.Info("capture stopped")
			return
		}

		data, err := handle.ReadFrame()
		if errors.Is(err, ErrReadTimeout) {
			continue
		}
		if err != nil {
			m.log.Warn("capture error", "error", err)
			m.mu.Lock()
			m.lastErr = err.Error()
			m.mu.Unlock()
			return
		}

		m.captured.Add(1)

		f, ok := decodeFrame(data)
		if !ok {
			continue
		}
		m.dispatch(f)
	}
}

// dispatch routes a captured datagram to the decoder matching its ports.
func (m *Manager) dispatch(f frame) {
	switch {
	case f.srcPort == artnet.Port || f.dstPort == artnet.Port:
		if packet, ok := artnet.Parse(f.payload); ok {
			m.dispatchArtNet(f, packet)
		}
	case f.srcPort == sacn.Port || f.dstPort == sacn.Port:
		if packet, ok := sacn.Parse(f.payload); ok {
			m.dispatchSACN(f, packet)
		}
	}
}

func (m *Manager) dispatchArtNet(f frame, packet artnet.Packet) {
	switch p := packet.(type) {
	case artnet.Dmx:
		seq := p.Sequence
		m.registry.UpdateArtNet(f.srcIP, "", "", nil, []uint16{p.Universe},
			source.DirectionSending, &seq)

		// The destination only identifies a receiver when it is a single host
		if unicastDst(f.dstIP) {
			m.registry.UpdateArtNet(f.dstIP, "", "", nil, []uint16{p.Universe},
				source.DirectionReceiving, nil)
		}

		m.store.Update(p.Universe, p.Data)
		m.bus.Publish(listener.FrameChanged{
			Universe:  p.Universe,
			SourceIP:  f.srcIP,
			Timestamp: uint64(time.Now().UnixMilli()),
			Data:      p.Data,
		})

	case artnet.PollReply:
		// A node answering polls is consuming them
		ip := net.IPv4(p.IPAddress[0], p.IPAddress[1], p.IPAddress[2], p.IPAddress[3])
		m.registry.UpdateArtNet(ip, p.ShortName, p.LongName, p.MACAddress[:],
			p.OutputPortUniverses(), source.DirectionReceiving, nil)
		m.bus.Publish(listener.SourcesChanged{})

	case artnet.Poll, artnet.Other:
	}
}

func (m *Manager) dispatchSACN(f frame, packet sacn.Packet) {
	switch p := packet.(type) {
	case sacn.Dmx:
		seq := p.Source.Sequence
		m.registry.UpdateSACN(f.srcIP, p.Source.Name, p.Source.CID, p.Source.Priority,
			p.Source.Universe, source.DirectionSending, &seq)

		// Unicast sACN reveals a receiver; its real CID is never on the
		// wire, so the registry keys the inferred entry by IP.
		if unicastDst(f.dstIP) {
			m.registry.UpdateSACN(f.dstIP, "", [16]byte{}, 0, p.Source.Universe,
				source.DirectionReceiving, nil)
		}

		m.store.Update(p.Source.Universe, p.Data)
		m.bus.Publish(listener.FrameChanged{
			Universe:  p.Source.Universe,
			SourceIP:  f.srcIP,
			Timestamp: uint64(time.Now().UnixMilli()),
			Data:      p.Data,
		})

	case sacn.Discovery, sacn.Sync, sacn.Unknown:
	}
}
