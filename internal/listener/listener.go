// Package listener owns the UDP sockets for both protocols and feeds the
// registry, frame store and event bus from everything they receive.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"lxmonitor/internal/artnet"
	"lxmonitor/internal/dmx"
	"lxmonitor/internal/sacn"
	"lxmonitor/internal/source"
)

// Task cadence
const (
	maintenanceInterval = time.Second
	pollInterval        = 10 * time.Second
	readBufferSize      = 1500
)

// Config controls where the listener binds, which protocols it listens
// for and how many sACN multicast groups it joins eagerly. Universes
// above the join range receive no multicast delivery.
type Config struct {
	BindAddress        string
	ArtNet             bool
	SACN               bool
	MulticastUniverses uint16
}

// DefaultConfig returns the standard monitor configuration: all
// interfaces, both protocols, multicast joins for universes 1-100.
func DefaultConfig() Config {
	return Config{
		BindAddress:        "0.0.0.0",
		ArtNet:             true,
		SACN:               true,
		MulticastUniverses: 100,
	}
}

// Listener runs the two protocol receive loops plus the periodic
// maintenance and discovery tasks.
type Listener struct {
	registry *source.Registry
	store    *dmx.Store
	bus      *Bus
	log      *slog.Logger
	cfg      Config

	mu         sync.Mutex
	started    bool
	artnetConn net.PacketConn
	sacnConn   *ipv4.PacketConn
	sacnRaw    net.PacketConn
}

// New creates a listener over the shared registry, store and bus.
func New(registry *source.Registry, store *dmx.Store, bus *Bus, log *slog.Logger, cfg Config) *Listener {
	if cfg.MulticastUniverses == 0 {
		cfg.MulticastUniverses = DefaultConfig().MulticastUniverses
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = DefaultConfig().BindAddress
	}
	return &Listener{
		registry: registry,
		store:    store,
		bus:      bus,
		log:      log,
		cfg:      cfg,
	}
}

// Start binds the enabled protocol sockets and launches the receive
// loops and periodic tasks. The loops stop when ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	if !l.cfg.ArtNet && !l.cfg.SACN {
		return fmt.Errorf("both protocols disabled, nothing to listen for")
	}

	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("listener already started")
	}
	l.started = true
	l.mu.Unlock()

	var artnetConn net.PacketConn
	if l.cfg.ArtNet {
		var err error
		artnetConn, err = net.ListenPacket("udp4", net.JoinHostPort(l.cfg.BindAddress, fmt.Sprint(artnet.Port)))
		if err != nil {
			return fmt.Errorf("failed to listen on Art-Net port %d: %w", artnet.Port, err)
		}
		if err := enableBroadcast(artnetConn); err != nil {
			l.log.Warn("could not enable broadcast on Art-Net socket", "error", err)
		}
	}

	var (
		sacnRaw  net.PacketConn
		sacnConn *ipv4.PacketConn
	)
	if l.cfg.SACN {
		// Shared bind: other E1.31 consumers on this host keep working
		lc := reuseListenConfig()
		var err error
		sacnRaw, err = lc.ListenPacket(ctx, "udp4", net.JoinHostPort(l.cfg.BindAddress, fmt.Sprint(sacn.Port)))
		if err != nil {
			if artnetConn != nil {
				artnetConn.Close()
			}
			return fmt.Errorf("failed to listen on sACN port %d: %w", sacn.Port, err)
		}

		sacnConn = ipv4.NewPacketConn(sacnRaw)
		if err := sacnConn.SetControlMessage(ipv4.FlagDst, true); err != nil {
			// Non-fatal on some platforms
			l.log.Warn("could not set control message", "error", err)
		}
	}

	l.mu.Lock()
	l.artnetConn = artnetConn
	l.sacnRaw = sacnRaw
	l.sacnConn = sacnConn
	l.mu.Unlock()

	if l.cfg.SACN {
		l.joinMulticastGroups(1, l.cfg.MulticastUniverses)
	}

	l.log.Info("listening", "artnet", l.cfg.ArtNet, "sacn", l.cfg.SACN,
		"bind", l.cfg.BindAddress, "multicast_universes", l.cfg.MulticastUniverses)

	go func() {
		<-ctx.Done()
		l.Stop()
	}()
	go l.maintenanceLoop(ctx)
	if l.cfg.ArtNet {
		go l.readArtNet(ctx)
		go l.pollLoop(ctx)
	}
	if l.cfg.SACN {
		go l.readSACN(ctx)
	}

	return nil
}

// Stop closes the sockets, unblocking the receive loops.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.artnetConn != nil {
		l.artnetConn.Close()
		l.artnetConn = nil
	}
	if l.sacnRaw != nil {
		l.sacnRaw.Close()
		l.sacnRaw = nil
		l.sacnConn = nil
	}
	l.started = false
}

// joinMulticastGroups joins the E1.31 group for each universe in the range
// on every up, multicast-capable interface.
func (l *Listener) joinMulticastGroups(startUniverse, endUniverse uint16) {
	interfaces, err := net.Interfaces()
	if err != nil {
		l.log.Warn("could not get network interfaces", "error", err)
		return
	}

	joined, failed := 0, 0
	for universe := startUniverse; universe <= endUniverse; universe++ {
		group := sacn.MulticastAddress(universe)

		for i := range interfaces {
			iface := &interfaces[i]
			if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagMulticast == 0 {
				continue
			}
			if iface.Flags&net.FlagUp == 0 {
				continue
			}

			if err := l.sacnConn.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
				failed++
			} else {
				joined++
			}
		}
	}
	l.log.Info("joined sACN multicast groups", "joined", joined, "failed", failed)
}

func (l *Listener) readArtNet(ctx context.Context) {
	buf := make([]byte, readBufferSize)

	for {
		l.mu.Lock()
		conn := l.artnetConn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		packet, ok := artnet.Parse(buf[:n])
		if !ok {
			// Foreign or malformed traffic is expected on this port
			continue
		}
		l.handleArtNet(src, packet)
	}
}

func (l *Listener) readSACN(ctx context.Context) {
	buf := make([]byte, readBufferSize)

	for {
		l.mu.Lock()
		conn := l.sacnConn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		n, _, src, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		packet, ok := sacn.Parse(buf[:n])
		if !ok {
			continue
		}
		l.handleSACN(src, packet)
	}
}

// handleArtNet dispatches a decoded Art-Net packet to the registry and,
// for DMX data, the frame store and event bus.
func (l *Listener) handleArtNet(src net.Addr, packet artnet.Packet) {
	switch p := packet.(type) {
	case artnet.PollReply:
		ip := net.IPv4(p.IPAddress[0], p.IPAddress[1], p.IPAddress[2], p.IPAddress[3])
		l.registry.UpdateArtNet(ip, p.ShortName, p.LongName, p.MACAddress[:],
			p.OutputPortUniverses(), source.DirectionUnknown, nil)
		l.bus.Publish(SourcesChanged{})

	case artnet.Dmx:
		ip := addrIP(src)
		seq := p.Sequence
		l.registry.UpdateArtNet(ip, "", "", nil, []uint16{p.Universe},
			source.DirectionSending, &seq)
		l.store.Update(p.Universe, p.Data)
		l.bus.Publish(FrameChanged{
			Universe:  p.Universe,
			SourceIP:  ip,
			Timestamp: nowMilli(),
			Data:      p.Data,
		})

	case artnet.Poll, artnet.Other:
		// Monitor only: polls are answered by nodes, not by us
	}
}

// handleSACN dispatches a decoded sACN packet.
func (l *Listener) handleSACN(src net.Addr, packet sacn.Packet) {
	switch p := packet.(type) {
	case sacn.Dmx:
		ip := addrIP(src)
		seq := p.Source.Sequence
		l.registry.UpdateSACN(ip, p.Source.Name, p.Source.CID, p.Source.Priority,
			p.Source.Universe, source.DirectionSending, &seq)
		l.store.Update(p.Source.Universe, p.Data)
		l.bus.Publish(FrameChanged{
			Universe:  p.Source.Universe,
			SourceIP:  ip,
			Timestamp: nowMilli(),
			Data:      p.Data,
		})

	case sacn.Discovery:
		ip := addrIP(src)
		for _, universe := range p.Universes {
			l.registry.UpdateSACN(ip, p.SourceName, p.CID, 100, universe,
				source.DirectionUnknown, nil)
		}
		l.bus.Publish(SourcesChanged{})

	case sacn.Sync, sacn.Unknown:
		// Sync carries no source data; Unknown includes non-zero start codes
	}
}

// maintenanceLoop sweeps the registry once a second.
func (l *Listener) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.registry.Sweep()
			l.bus.Publish(SourcesChanged{})
		}
	}
}

// pollLoop re-broadcasts an ArtPoll every ten seconds to keep the node
// topology fresh.
func (l *Listener) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.SendPoll(); err != nil {
				l.log.Warn("periodic ArtPoll failed", "error", err)
			}
		}
	}
}

// SendPoll broadcasts an ArtPoll discovery packet.
func (l *Listener) SendPoll() error {
	l.mu.Lock()
	conn := l.artnetConn
	l.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("listener not running")
	}

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: artnet.Port}
	if _, err := conn.WriteTo(artnet.EncodePoll(), dst); err != nil {
		return fmt.Errorf("failed to send ArtPoll: %w", err)
	}
	return nil
}

// reuseListenConfig binds with SO_REUSEADDR and SO_REUSEPORT so the
// sACN socket can share port 5568 with other E1.31 consumers on the
// same host.
func reuseListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

// enableBroadcast sets SO_BROADCAST so the Art-Net socket can both
// receive and send broadcast traffic.
func enableBroadcast(conn net.PacketConn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("connection does not expose a raw socket")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func addrIP(addr net.Addr) net.IP {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP
	}
	return nil
}

func nowMilli() uint64 {
	return uint64(time.Now().UnixMilli())
}
