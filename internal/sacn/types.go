package sacn

// E1.31 protocol constants
const (
	Port        = 5568
	MaxChannels = 512

	RootVectorData     = 0x00000004
	RootVectorExtended = 0x00000008

	FramingVectorDMP       = 0x00000002
	FramingVectorSync      = 0x00000001
	FramingVectorDiscovery = 0x00000002

	DMPVectorSetProperty = 0x02
)

// ACNPacketIdentifier is the fixed identifier at offset 4 of every ACN
// root layer: "ASC-E1.17" padded with nulls.
var ACNPacketIdentifier = []byte{0x41, 0x53, 0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

// Source carries the framing-layer identity of an E1.31 data packet.
type Source struct {
	CID         [16]byte // Component Identifier (UUID)
	Name        string   // Source name, up to 64 bytes UTF-8
	Priority    uint8    // 0-200, default 100
	SyncAddress uint16   // Synchronization universe
	Sequence    uint8
	Options     uint8
	Universe    uint16
}

// Packet is a parsed E1.31 packet. The concrete type is one of
// Dmx, Sync, Discovery or Unknown; consumers type-switch over it.
type Packet interface {
	sacnPacket()
}

// Dmx is a data packet carrying one universe frame with start code 0.
type Dmx struct {
	Source    Source
	StartCode uint8
	Data      []byte
}

// Sync is a synchronization packet.
type Sync struct {
	SyncAddress uint16
}

// Discovery is a universe discovery packet listing the universes a
// source is transmitting.
type Discovery struct {
	CID        [16]byte
	SourceName string
	Universes  []uint16
}

// Unknown is a structurally valid ACN packet this monitor does not decode.
// Data packets with a non-zero start code deliberately land here.
type Unknown struct{}

func (Dmx) sacnPacket()       {}
func (Sync) sacnPacket()      {}
func (Discovery) sacnPacket() {}
func (Unknown) sacnPacket()   {}
