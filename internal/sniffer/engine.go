package sniffer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/pcap"

	"lxmonitor/internal/artnet"
	"lxmonitor/internal/sacn"
)

// Capture tuning. The read timeout exists only to bound how long a stop
// request can go unobserved, it has no protocol meaning.
const (
	captureSnaplen = 1600
	captureTimeout = 100 * time.Millisecond
)

var (
	// ErrDriverUnavailable means no capture driver (libpcap/Npcap) is usable.
	ErrDriverUnavailable = errors.New("capture driver not available")
	// ErrAlreadyRunning means capture was requested while a capture loop is active.
	ErrAlreadyRunning = errors.New("capture already running")
	// ErrNoInterfaces means the driver reported no capturable interfaces.
	ErrNoInterfaces = errors.New("no capture interfaces available")
	// ErrReadTimeout is returned by Handle.ReadFrame when the bounded read
	// timed out with no frame; callers poll their stop flag and retry.
	ErrReadTimeout = errors.New("capture read timeout")
)

// Interface describes a capturable network device.
type Interface struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Engine abstracts the capture driver so the monitor runs with or without
// one. The driver-backed and unavailable implementations are chosen at
// process startup.
type Engine interface {
	Available() bool
	Interfaces() ([]Interface, error)
	Open(name string) (Handle, error)
}

// Handle is an open promiscuous capture on one interface, already
// filtered down to the two protocol ports.
type Handle interface {
	// ReadFrame returns the next raw link-layer frame, or ErrReadTimeout
	// after at most the capture timeout.
	ReadFrame() ([]byte, error)
	Close()
}

// PcapEngine captures through libpcap/Npcap.
type PcapEngine struct{}

// NewPcapEngine returns the driver-backed engine.
func NewPcapEngine() *PcapEngine {
	return &PcapEngine{}
}

// Available reports whether the driver can be loaded at all.
func (*PcapEngine) Available() bool {
	_, err := pcap.FindAllDevs()
	return err == nil
}

// Interfaces lists capturable devices.
func (*PcapEngine) Interfaces() ([]Interface, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	out := make([]Interface, 0, len(devices))
	for _, d := range devices {
		out = append(out, Interface{Name: d.Name, Description: d.Description})
	}
	return out, nil
}

// Open starts a promiscuous capture on the named device, filtered to UDP
// traffic on the Art-Net and sACN ports.
func (*PcapEngine) Open(name string) (Handle, error) {
	handle, err := pcap.OpenLive(name, captureSnaplen, true, captureTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture on %s: %w", name, err)
	}

	filter := fmt.Sprintf("udp port %d or udp port %d", artnet.Port, sacn.Port)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set capture filter: %w", err)
	}

	return &pcapHandle{handle: handle}, nil
}

type pcapHandle struct {
	handle *pcap.Handle
}

func (h *pcapHandle) ReadFrame() ([]byte, error) {
	data, _, err := h.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ErrReadTimeout
	}
	return data, err
}

func (h *pcapHandle) Close() {
	h.handle.Close()
}

// StubEngine is the no-driver fallback: it reports unavailable and
// refuses to open anything.
type StubEngine struct{}

// NewStubEngine returns the unavailable engine.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

func (*StubEngine) Available() bool { return false }

func (*StubEngine) Interfaces() ([]Interface, error) { return nil, nil }

func (*StubEngine) Open(string) (Handle, error) {
	return nil, ErrDriverUnavailable
}
