package sniffer

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// buildFrame serializes an Ethernet/IPv4/UDP frame the way it would arrive
// off the wire.
func buildFrame(t *testing.T, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFrame_ValidUDP(t *testing.T) {
	src := net.IPv4(192, 168, 1, 10).To4()
	dst := net.IPv4(192, 168, 1, 20).To4()
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	f, ok := decodeFrame(buildFrame(t, src, dst, 40000, 6454, payload))
	if !ok {
		t.Fatal("decodeFrame rejected a valid UDP frame")
	}
	if !f.srcIP.Equal(src) || !f.dstIP.Equal(dst) {
		t.Errorf("addressing = %v -> %v", f.srcIP, f.dstIP)
	}
	if f.srcPort != 40000 || f.dstPort != 6454 {
		t.Errorf("ports = %d -> %d", f.srcPort, f.dstPort)
	}
	if len(f.payload) != 4 || f.payload[0] != 0xde {
		t.Errorf("payload = %v", f.payload)
	}
}

func TestDecodeFrame_RejectsNonIPv4(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   eth.SrcMAC,
		SourceProtAddress: []byte{192, 168, 1, 10},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{192, 168, 1, 20},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}

	if _, ok := decodeFrame(buf.Bytes()); ok {
		t.Error("decodeFrame accepted an ARP frame")
	}
}

func TestDecodeFrame_RejectsNonUDP(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(192, 168, 1, 10).To4(),
		DstIP:    net.IPv4(192, 168, 1, 20).To4(),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}

	if _, ok := decodeFrame(buf.Bytes()); ok {
		t.Error("decodeFrame accepted a TCP frame")
	}
}

func TestDecodeFrame_RejectsTruncated(t *testing.T) {
	full := buildFrame(t, net.IPv4(10, 0, 0, 1).To4(), net.IPv4(10, 0, 0, 2).To4(),
		40000, 5568, []byte{1, 2, 3})

	// Cut inside the IPv4 header
	if _, ok := decodeFrame(full[:20]); ok {
		t.Error("decodeFrame accepted a truncated frame")
	}
	if _, ok := decodeFrame(nil); ok {
		t.Error("decodeFrame accepted an empty frame")
	}
}

func TestUnicastDst(t *testing.T) {
	tests := []struct {
		ip   net.IP
		want bool
	}{
		{net.IPv4(192, 168, 1, 20), true},
		{net.IPv4(10, 0, 0, 1), true},
		{net.IPv4(239, 255, 0, 1), false},
		{net.IPv4(224, 0, 0, 1), false},
		{net.IPv4bcast, false},
	}

	for _, tt := range tests {
		if got := unicastDst(tt.ip); got != tt.want {
			t.Errorf("unicastDst(%v) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
