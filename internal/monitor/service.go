// Package monitor is the query/command surface the presentation layer
// talks to; it owns nothing itself and delegates to the shared state.
package monitor

import (
	"lxmonitor/internal/dmx"
	"lxmonitor/internal/listener"
	"lxmonitor/internal/sniffer"
	"lxmonitor/internal/source"
)

// Service bundles the registry, frame store, event bus, capture manager
// and listener behind one facade.
type Service struct {
	registry *source.Registry
	store    *dmx.Store
	bus      *listener.Bus
	capture  *sniffer.Manager
	listener *listener.Listener
}

// New creates the facade.
func New(registry *source.Registry, store *dmx.Store, bus *listener.Bus, capture *sniffer.Manager, l *listener.Listener) *Service {
	return &Service{
		registry: registry,
		store:    store,
		bus:      bus,
		capture:  capture,
		listener: l,
	}
}

// Sources returns a snapshot of all discovered sources.
func (s *Service) Sources() []source.NetworkSource {
	return s.registry.Sources()
}

// Frame returns the latest frame for one universe.
func (s *Service) Frame(universe uint16) ([]byte, bool) {
	return s.store.Get(universe)
}

// Frames returns the latest frame of every universe.
func (s *Service) Frames() map[uint16][]byte {
	return s.store.All()
}

// CaptureStatus reports the promiscuous capture state.
func (s *Service) CaptureStatus() sniffer.Status {
	return s.capture.Status()
}

// CaptureInterfaces lists capturable devices.
func (s *Service) CaptureInterfaces() ([]sniffer.Interface, error) {
	return s.capture.Interfaces()
}

// EnableCapture starts promiscuous capture; empty name means the first
// available interface.
func (s *Service) EnableCapture(name string) error {
	return s.capture.Enable(name)
}

// DisableCapture requests capture to stop.
func (s *Service) DisableCapture() {
	s.capture.Disable()
}

// SendPoll broadcasts an on-demand ArtPoll.
func (s *Service) SendPoll() error {
	return s.listener.SendPoll()
}

// Subscribe registers for change events.
func (s *Service) Subscribe() *listener.Subscription {
	return s.bus.Subscribe()
}
