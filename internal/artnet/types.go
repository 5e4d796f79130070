package artnet

// Art-Net protocol constants
const (
	Port            = 6454
	MaxChannels     = 512
	ProtocolVersion = 14
)

// Header is the fixed 8-byte packet header, "Art-Net" plus a null.
var Header = []byte("Art-Net\x00")

// OpCode identifies the Art-Net packet type. Stored little-endian on the wire.
type OpCode uint16

const (
	OpPoll        OpCode = 0x2000
	OpPollReply   OpCode = 0x2100
	OpDmx         OpCode = 0x5000
	OpNzs         OpCode = 0x5100
	OpSync        OpCode = 0x5200
	OpAddress     OpCode = 0x6000
	OpInput       OpCode = 0x7000
	OpTodRequest  OpCode = 0x8000
	OpTodData     OpCode = 0x8100
	OpTodControl  OpCode = 0x8200
	OpRdm         OpCode = 0x8300
	OpRdmSub      OpCode = 0x8400
	OpIpProg      OpCode = 0xf800
	OpIpProgReply OpCode = 0xf900
)

// Packet is a parsed Art-Net packet. The concrete type is one of
// Poll, PollReply, Dmx or Other; consumers type-switch over it.
type Packet interface {
	artnetPacket()
}

// Poll is an ArtPoll discovery request.
type Poll struct{}

// PollReply is an ArtPollReply node description.
type PollReply struct {
	IPAddress        [4]byte
	Port             uint16
	VersionInfo      uint16
	NetSwitch        uint8
	SubSwitch        uint8
	OEM              uint16
	UbeaVersion      uint8
	Status1          uint8
	ESTAManufacturer uint16
	ShortName        string
	LongName         string
	NodeReport       string
	NumPorts         uint16
	PortTypes        [4]byte
	GoodInput        [4]byte
	GoodOutput       [4]byte
	SwIn             [4]byte
	SwOut            [4]byte
	Style            uint8
	MACAddress       [6]byte
	BindIP           [4]byte
	BindIndex        uint8
	Status2          uint8
}

// Dmx is an ArtDmx data packet carrying one universe frame.
type Dmx struct {
	Sequence uint8
	Physical uint8
	Universe uint16 // 15-bit net:subnet:universe
	Length   uint16
	Data     []byte
}

// Other is any structurally valid Art-Net packet this monitor does not decode.
type Other struct {
	OpCode OpCode
}

func (Poll) artnetPacket()      {}
func (PollReply) artnetPacket() {}
func (Dmx) artnetPacket()       {}
func (Other) artnetPacket()     {}

// OutputPortUniverses returns the universes advertised on the reply's
// output ports (port type bit 7 set), resolved against the net/sub switches.
func (r PollReply) OutputPortUniverses() []uint16 {
	ports := int(r.NumPorts)
	if ports > 4 {
		ports = 4
	}

	var universes []uint16
	for i := 0; i < ports; i++ {
		if r.PortTypes[i]&0x80 != 0 {
			universes = append(universes, CalculateUniverse(r.NetSwitch, r.SubSwitch, r.SwOut[i]))
		}
	}
	return universes
}
