package artnet

import (
	"bytes"
	"testing"
)

// buildDmxPacket creates a valid ArtDmx packet for testing
func buildDmxPacket(universe uint16, sequence uint8, channels []byte) []byte {
	packet := make([]byte, 18+len(channels))
	copy(packet, Header)

	// OpCode (offset 8-9, little-endian): OpDmx
	packet[8] = 0x00
	packet[9] = 0x50

	// Protocol version (offset 10-11)
	packet[10] = 0x00
	packet[11] = 0x0e

	// Sequence (offset 12), physical (offset 13)
	packet[12] = sequence
	packet[13] = 1

	// Universe (offset 14-15, little-endian)
	packet[14] = byte(universe)
	packet[15] = byte(universe >> 8)

	// Length (offset 16-17, big-endian)
	packet[16] = byte(len(channels) >> 8)
	packet[17] = byte(len(channels))

	copy(packet[18:], channels)
	return packet
}

// buildPollReply creates a valid ArtPollReply of the given total size
func buildPollReply(size int) []byte {
	packet := make([]byte, size)
	copy(packet, Header)

	// OpCode: OpPollReply
	packet[8] = 0x00
	packet[9] = 0x21

	// IP address (offset 10-13)
	copy(packet[10:14], []byte{10, 0, 0, 42})

	// Port (offset 14-15, little-endian): 6454 = 0x1936
	packet[14] = 0x36
	packet[15] = 0x19

	// Net/Sub switch
	packet[18] = 1
	packet[19] = 2

	// ESTA manufacturer (offset 24-25, little-endian)
	packet[24] = 0x50
	packet[25] = 0x12

	// Short name (offset 26), long name (offset 44), node report (offset 108)
	copy(packet[26:], "node\x00")
	copy(packet[44:], "A Long Node Name\x00")
	copy(packet[108:], "#0001 [0] OK\x00")

	// One output port: universe switch 3
	packet[173] = 1    // NumPorts low byte
	packet[174] = 0x80 // PortTypes[0]: output
	packet[190] = 3    // SwOut[0]

	if size > 200 {
		packet[200] = 0x00 // style: node
	}
	if size >= 207 {
		copy(packet[201:207], []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01})
	}
	return packet
}

func TestParse_EncodePollRoundTrip(t *testing.T) {
	packet, ok := Parse(EncodePoll())
	if !ok {
		t.Fatal("Parse(EncodePoll()) failed")
	}

	if _, isPoll := packet.(Poll); !isPoll {
		t.Errorf("Parse(EncodePoll()) = %T, want Poll", packet)
	}
}

func TestEncodePoll_Layout(t *testing.T) {
	packet := EncodePoll()

	if len(packet) != 14 {
		t.Fatalf("len = %d, want 14", len(packet))
	}
	if !bytes.Equal(packet[0:8], Header) {
		t.Errorf("header = %v, want %v", packet[0:8], Header)
	}
	if packet[8] != 0x00 || packet[9] != 0x20 {
		t.Errorf("opcode bytes = %#x %#x, want 0x00 0x20", packet[8], packet[9])
	}
	if packet[10] != 0x00 || packet[11] != 0x0e {
		t.Errorf("protocol version bytes = %#x %#x, want 0x00 0x0e", packet[10], packet[11])
	}
	if packet[12] != 0x02 {
		t.Errorf("flags = %#x, want 0x02", packet[12])
	}
	if packet[13] != 0x10 {
		t.Errorf("diag priority = %#x, want 0x10", packet[13])
	}
}

func TestParse_TooShort(t *testing.T) {
	for i := 0; i < 12; i++ {
		if _, ok := Parse(make([]byte, i)); ok {
			t.Errorf("Parse accepted %d-byte input", i)
		}
	}
}

func TestParse_BadHeader(t *testing.T) {
	packet := buildDmxPacket(1, 0, []byte{255})
	packet[0] = 'B'

	if _, ok := Parse(packet); ok {
		t.Error("Parse accepted a packet without the Art-Net header")
	}
}

func TestParse_UnknownOpcode(t *testing.T) {
	packet := make([]byte, 12)
	copy(packet, Header)
	packet[8] = 0x00
	packet[9] = 0x52 // OpSync

	result, ok := Parse(packet)
	if !ok {
		t.Fatal("Parse failed on a valid OpSync packet")
	}

	other, isOther := result.(Other)
	if !isOther {
		t.Fatalf("Parse = %T, want Other", result)
	}
	if other.OpCode != OpSync {
		t.Errorf("OpCode = %#x, want %#x", other.OpCode, OpSync)
	}
}

func TestParse_Dmx(t *testing.T) {
	channels := []byte{255, 128, 64, 0, 100, 200}
	raw := buildDmxPacket(0x0102, 42, channels)

	result, ok := Parse(raw)
	if !ok {
		t.Fatal("Parse failed")
	}

	dmx, isDmx := result.(Dmx)
	if !isDmx {
		t.Fatalf("Parse = %T, want Dmx", result)
	}

	if dmx.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", dmx.Sequence)
	}
	if dmx.Physical != 1 {
		t.Errorf("Physical = %d, want 1", dmx.Physical)
	}
	if dmx.Universe != 0x0102 {
		t.Errorf("Universe = %#x, want 0x0102", dmx.Universe)
	}
	if dmx.Length != uint16(len(channels)) {
		t.Errorf("Length = %d, want %d", dmx.Length, len(channels))
	}
	if !bytes.Equal(dmx.Data, channels) {
		t.Errorf("Data = %v, want %v", dmx.Data, channels)
	}
	if !bytes.Equal(dmx.Data, raw[18:18+len(channels)]) {
		t.Error("Data does not match wire bytes [18, 18+L)")
	}
}

func TestParse_DmxTruncatedPayload(t *testing.T) {
	packet := buildDmxPacket(1, 0, []byte{1, 2, 3, 4})
	// Declare more channels than the buffer carries
	packet[17] = 10

	if _, ok := Parse(packet); ok {
		t.Error("Parse accepted a Dmx packet shorter than its declared length")
	}
}

func TestParse_DmxLengthClamped(t *testing.T) {
	channels := make([]byte, 600)
	packet := buildDmxPacket(1, 0, channels)
	// Builder wrote the real length; 600 > 512 so payload is clamped
	result, ok := Parse(packet)
	if !ok {
		t.Fatal("Parse failed")
	}

	dmx := result.(Dmx)
	if len(dmx.Data) != 512 {
		t.Errorf("len(Data) = %d, want 512", len(dmx.Data))
	}
}

func TestParse_PollReply(t *testing.T) {
	result, ok := Parse(buildPollReply(207))
	if !ok {
		t.Fatal("Parse failed")
	}

	reply, isReply := result.(PollReply)
	if !isReply {
		t.Fatalf("Parse = %T, want PollReply", result)
	}

	if reply.IPAddress != [4]byte{10, 0, 0, 42} {
		t.Errorf("IPAddress = %v, want 10.0.0.42", reply.IPAddress)
	}
	if reply.Port != 6454 {
		t.Errorf("Port = %d, want 6454", reply.Port)
	}
	if reply.NetSwitch != 1 || reply.SubSwitch != 2 {
		t.Errorf("Net/Sub = %d/%d, want 1/2", reply.NetSwitch, reply.SubSwitch)
	}
	if reply.ESTAManufacturer != 0x1250 {
		t.Errorf("ESTAManufacturer = %#x, want 0x1250", reply.ESTAManufacturer)
	}
	if reply.ShortName != "node" {
		t.Errorf("ShortName = %q, want %q", reply.ShortName, "node")
	}
	if reply.LongName != "A Long Node Name" {
		t.Errorf("LongName = %q, want %q", reply.LongName, "A Long Node Name")
	}
	if reply.NodeReport != "#0001 [0] OK" {
		t.Errorf("NodeReport = %q", reply.NodeReport)
	}
	if reply.NumPorts != 1 {
		t.Errorf("NumPorts = %d, want 1", reply.NumPorts)
	}
	if reply.MACAddress != [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01} {
		t.Errorf("MACAddress = %v", reply.MACAddress)
	}

	// Fields past the 207-byte buffer default to zero
	if reply.BindIndex != 0 || reply.Status2 != 0 || reply.BindIP != [4]byte{} {
		t.Error("trailing fields should be zero on a 207-byte reply")
	}
}

func TestParse_PollReplyTooShort(t *testing.T) {
	packet := buildPollReply(207)
	if _, ok := Parse(packet[:206]); ok {
		t.Error("Parse accepted a 206-byte PollReply")
	}
}

func TestPollReply_OutputPortUniverses(t *testing.T) {
	result, _ := Parse(buildPollReply(207))
	reply := result.(PollReply)

	universes := reply.OutputPortUniverses()
	if len(universes) != 1 {
		t.Fatalf("len = %d, want 1", len(universes))
	}

	// net=1, sub=2, swOut=3
	if universes[0] != 0x123 {
		t.Errorf("universe = %#x, want 0x123", universes[0])
	}
}

func TestCalculateUniverse(t *testing.T) {
	tests := []struct {
		net, sub, uni uint8
		want          uint16
	}{
		{0, 0, 0, 0},
		{1, 2, 3, 0x123},
		{0, 0, 15, 15},
		{0, 15, 0, 0xF0},
		{0x7F, 0x0F, 0x0F, 0x7FFF},
		// High bits masked off
		{0xFF, 0xFF, 0xFF, 0x7FFF},
	}

	for _, tt := range tests {
		got := CalculateUniverse(tt.net, tt.sub, tt.uni)
		if got != tt.want {
			t.Errorf("CalculateUniverse(%d, %d, %d) = %#x, want %#x",
				tt.net, tt.sub, tt.uni, got, tt.want)
		}
	}
}
