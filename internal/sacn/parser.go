package sacn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// Parse parses a raw E1.31 packet. It returns false for anything that is
// not ACN (too short, bad identifier or preamble); valid ACN framing that
// this monitor does not decode parses as Unknown.
func Parse(data []byte) (Packet, bool) {
	// Minimum size for the root layer
	if len(data) < 38 {
		return nil, false
	}

	// ACN packet identifier (offset 4-15)
	if !bytes.Equal(data[4:16], ACNPacketIdentifier) {
		return nil, false
	}

	// Preamble size (offset 0-1): must be 0x0010
	if binary.BigEndian.Uint16(data[0:2]) != 0x0010 {
		return nil, false
	}

	// Post-amble size (offset 2-3): must be 0x0000
	if binary.BigEndian.Uint16(data[2:4]) != 0x0000 {
		return nil, false
	}

	// Root layer vector (offset 18-21)
	rootVector := binary.BigEndian.Uint32(data[18:22])

	// CID (offset 22-37)
	var cid [16]byte
	copy(cid[:], data[22:38])

	switch rootVector {
	case RootVectorData:
		return parseDataPacket(data, cid)
	case RootVectorExtended:
		return parseExtendedPacket(data, cid)
	default:
		return Unknown{}, true
	}
}

// parseDataPacket parses the framing and DMP layers of a data packet,
// which carries either DMX or a sync command.
func parseDataPacket(data []byte, cid [16]byte) (Packet, bool) {
	// Minimum size for the framing layer
	if len(data) < 115 {
		return nil, false
	}

	// Framing vector (offset 40-43)
	framingVector := binary.BigEndian.Uint32(data[40:44])

	// Source name (offset 44-107, 64 bytes, null-terminated UTF-8)
	sourceName := nullTerminated(data[44:108])

	// Priority (offset 108), sync address (offset 109-110),
	// sequence (offset 111), options (offset 112), universe (offset 113-114)
	priority := data[108]
	syncAddress := binary.BigEndian.Uint16(data[109:111])
	sequence := data[111]
	options := data[112]
	universe := binary.BigEndian.Uint16(data[113:115])

	if framingVector == FramingVectorSync {
		return Sync{SyncAddress: syncAddress}, true
	}

	// DMP layer starts at offset 115
	if len(data) < 126 {
		return nil, false
	}

	// DMP vector (offset 117): must be SET_PROPERTY
	if data[117] != DMPVectorSetProperty {
		return Unknown{}, true
	}

	// Property value count (offset 123-124)
	propertyCount := int(binary.BigEndian.Uint16(data[123:125]))

	// Start code (offset 125). Only start code 0 (standard DMX512 dimmer
	// data) is decoded; non-zero start codes carry alternate data types
	// and cause output flicker on some consoles when treated as levels.
	startCode := data[125]
	if startCode != 0 {
		return Unknown{}, true
	}

	// DMX data starts at offset 126; the count includes the start code slot
	length := propertyCount - 1
	if length < 0 {
		length = 0
	}
	if length > MaxChannels {
		length = MaxChannels
	}
	if rem := len(data) - 126; length > rem {
		length = rem
	}

	payload := make([]byte, length)
	copy(payload, data[126:126+length])

	return Dmx{
		Source: Source{
			CID:         cid,
			Name:        sourceName,
			Priority:    priority,
			SyncAddress: syncAddress,
			Sequence:    sequence,
			Options:     options,
			Universe:    universe,
		},
		StartCode: startCode,
		Data:      payload,
	}, true
}

// parseExtendedPacket parses universe discovery packets.
func parseExtendedPacket(data []byte, cid [16]byte) (Packet, bool) {
	if len(data) < 120 {
		return nil, false
	}

	// Framing vector (offset 40-43): only discovery is meaningful here
	framingVector := binary.BigEndian.Uint32(data[40:44])
	if framingVector != FramingVectorDiscovery {
		return Unknown{}, true
	}

	sourceName := nullTerminated(data[44:108])

	// Universe list (offset 120 to end): big-endian pairs, zeros skipped
	var universes []uint16
	for offset := 120; offset+1 < len(data); offset += 2 {
		if u := binary.BigEndian.Uint16(data[offset : offset+2]); u != 0 {
			universes = append(universes, u)
		}
	}

	return Discovery{
		CID:        cid,
		SourceName: sourceName,
		Universes:  universes,
	}, true
}

// nullTerminated extracts a null-terminated string, tolerating invalid UTF-8.
func nullTerminated(data []byte) string {
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		data = data[:idx]
	}
	return string(data)
}

// MulticastAddress returns the E1.31 multicast group for a universe:
// 239.255.{high byte}.{low byte}.
func MulticastAddress(universe uint16) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe&0xFF))
}

// CIDString renders a component identifier in UUID textual form.
func CIDString(cid [16]byte) string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		cid[0], cid[1], cid[2], cid[3],
		cid[4], cid[5],
		cid[6], cid[7],
		cid[8], cid[9],
		cid[10], cid[11], cid[12], cid[13], cid[14], cid[15])
}
