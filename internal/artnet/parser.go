package artnet

import (
	"bytes"
	"encoding/binary"
)

// Parse parses a raw Art-Net packet. It returns false for anything that is
// not Art-Net (too short, wrong header); unrecognized opcodes still parse,
// as Other.
func Parse(data []byte) (Packet, bool) {
	if len(data) < 12 {
		return nil, false
	}

	if !bytes.Equal(data[0:8], Header) {
		return nil, false
	}

	// OpCode (offset 8-9, little-endian)
	opcode := OpCode(binary.LittleEndian.Uint16(data[8:10]))

	switch opcode {
	case OpPoll:
		return Poll{}, true
	case OpPollReply:
		return parsePollReply(data)
	case OpDmx:
		return parseDmx(data)
	default:
		return Other{OpCode: opcode}, true
	}
}

func parsePollReply(data []byte) (Packet, bool) {
	if len(data) < 207 {
		return nil, false
	}

	var reply PollReply

	// IP address (offset 10-13)
	copy(reply.IPAddress[:], data[10:14])

	// Port (offset 14-15, little-endian)
	reply.Port = binary.LittleEndian.Uint16(data[14:16])

	// Firmware version (offset 16-17, high byte first)
	reply.VersionInfo = binary.BigEndian.Uint16(data[16:18])

	// Net/Sub switch (offsets 18, 19)
	reply.NetSwitch = data[18]
	reply.SubSwitch = data[19]

	// OEM (offset 20-21)
	reply.OEM = binary.BigEndian.Uint16(data[20:22])

	// UBEA version (offset 22), Status1 (offset 23)
	reply.UbeaVersion = data[22]
	reply.Status1 = data[23]

	// ESTA manufacturer code (offset 24-25, little-endian)
	reply.ESTAManufacturer = binary.LittleEndian.Uint16(data[24:26])

	// Short name (offset 26-43), long name (offset 44-107),
	// node report (offset 108-171): null-terminated text fields
	reply.ShortName = nullTerminated(data[26:44])
	reply.LongName = nullTerminated(data[44:108])
	reply.NodeReport = nullTerminated(data[108:172])

	// NumPorts (offset 172-173)
	reply.NumPorts = binary.BigEndian.Uint16(data[172:174])

	// Port arrays (offsets 174-193)
	copy(reply.PortTypes[:], data[174:178])
	copy(reply.GoodInput[:], data[178:182])
	copy(reply.GoodOutput[:], data[182:186])
	copy(reply.SwIn[:], data[186:190])
	copy(reply.SwOut[:], data[190:194])

	// Trailing fields only exist on longer replies; short buffers leave
	// them zero rather than failing the parse.
	if len(data) > 200 {
		reply.Style = data[200]
	}
	if len(data) >= 207 {
		copy(reply.MACAddress[:], data[201:207])
	}
	if len(data) >= 211 {
		copy(reply.BindIP[:], data[207:211])
	}
	if len(data) > 211 {
		reply.BindIndex = data[211]
	}
	if len(data) > 212 {
		reply.Status2 = data[212]
	}

	return reply, true
}

func parseDmx(data []byte) (Packet, bool) {
	if len(data) < 18 {
		return nil, false
	}

	// Sequence (offset 12), physical input port (offset 13)
	sequence := data[12]
	physical := data[13]

	// Universe (offset 14-15, little-endian): SubUni low byte, Net high byte
	subUni := data[14]
	net := data[15]
	universe := uint16(net)<<8 | uint16(subUni)

	// Data length (offset 16-17, big-endian)
	length := binary.BigEndian.Uint16(data[16:18])

	payloadLen := int(length)
	if payloadLen > MaxChannels {
		payloadLen = MaxChannels
	}
	end := 18 + payloadLen
	if len(data) < end {
		return nil, false
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[18:end])

	return Dmx{
		Sequence: sequence,
		Physical: physical,
		Universe: universe,
		Length:   length,
		Data:     payload,
	}, true
}

// nullTerminated extracts a null-terminated string, tolerating invalid UTF-8.
func nullTerminated(data []byte) string {
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		data = data[:idx]
	}
	return string(data)
}

// CalculateUniverse packs net, subnet and universe switches into the full
// 15-bit Art-Net port address.
func CalculateUniverse(net, subnet, universe uint8) uint16 {
	return (uint16(net)&0x7F)<<8 | (uint16(subnet)&0x0F)<<4 | uint16(universe)&0x0F
}

// EncodePoll builds an ArtPoll discovery packet. The flags request an
// ArtPollReply whenever node conditions change; diagnostics are requested
// at low priority.
func EncodePoll() []byte {
	packet := make([]byte, 0, 14)
	packet = append(packet, Header...)
	packet = append(packet, 0x00, 0x20) // OpPoll, little-endian
	packet = append(packet, 0x00, 0x0e) // protocol version 14, high byte first
	packet = append(packet, 0x02)       // send reply on change
	packet = append(packet, 0x10)       // low priority diagnostics
	return packet
}
