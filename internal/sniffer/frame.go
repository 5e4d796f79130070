package sniffer

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// frame is the recovered addressing of one captured UDP datagram. Unlike
// a socket receive, it includes the destination, which is what lets the
// sniffer see pure receivers.
type frame struct {
	srcIP   net.IP
	dstIP   net.IP
	srcPort uint16
	dstPort uint16
	payload []byte
}

// decodeFrame extracts Ethernet/IPv4/UDP addressing from a raw captured
// frame. Anything that is not IPv4 UDP, or is structurally truncated,
// is rejected.
func decodeFrame(data []byte) (frame, bool) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return frame{}, false
	}
	eth := ethLayer.(*layers.Ethernet)
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return frame{}, false
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return frame{}, false
	}
	ip := ipLayer.(*layers.IPv4)
	if ip.Version != 4 || ip.Protocol != layers.IPProtocolUDP {
		return frame{}, false
	}

	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return frame{}, false
	}
	udp := udpLayer.(*layers.UDP)

	return frame{
		srcIP:   ip.SrcIP,
		dstIP:   ip.DstIP,
		srcPort: uint16(udp.SrcPort),
		dstPort: uint16(udp.DstPort),
		payload: udp.Payload,
	}, true
}

// unicastDst reports whether a destination address identifies a single
// host worth recording as a receiver.
func unicastDst(ip net.IP) bool {
	return !ip.IsMulticast() && !ip.Equal(net.IPv4bcast)
}
