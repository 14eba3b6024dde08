// Package wire implements the DoIP (ISO 13400) generic header and typed
// payload codec. Every function here is pure: no I/O, no state, just byte
// slices in and structs (or byte slices) out.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderLength is the fixed size of the DoIP generic header.
const HeaderLength = 8

// Protocol versions accepted on receive and used on send.
const (
	ProtocolVersion2 byte = 0x02
	ProtocolVersion3 byte = 0x03
)

// PayloadType identifies the body layout that follows the generic header.
type PayloadType uint16

const (
	PayloadTypeGenericNack          PayloadType = 0x0000
	PayloadTypeVehicleIDReq         PayloadType = 0x0001
	PayloadTypeVehicleIDReqEID      PayloadType = 0x0002
	PayloadTypeVehicleIDReqVIN      PayloadType = 0x0003
	PayloadTypeVehicleAnnouncement  PayloadType = 0x0004
	PayloadTypeRoutingActivationReq PayloadType = 0x0005
	PayloadTypeRoutingActivationRes PayloadType = 0x0006
	PayloadTypeDiagMessage          PayloadType = 0x8001
	PayloadTypeDiagMessagePosAck    PayloadType = 0x8002
	PayloadTypeDiagMessageNegAck    PayloadType = 0x8003
)

// knownPayloadTypes is the set DecodeHeader accepts; anything else is
// ErrUnknownPayloadType. PayloadTypeGenericNack is accepted on decode (a
// server may legitimately send one back) even though the client never
// needs to decode one it sent itself.
var knownPayloadTypes = map[PayloadType]bool{
	PayloadTypeGenericNack:          true,
	PayloadTypeVehicleIDReq:         true,
	PayloadTypeVehicleIDReqEID:      true,
	PayloadTypeVehicleIDReqVIN:      true,
	PayloadTypeVehicleAnnouncement:  true,
	PayloadTypeRoutingActivationReq: true,
	PayloadTypeRoutingActivationRes: true,
	PayloadTypeDiagMessage:          true,
	PayloadTypeDiagMessagePosAck:    true,
	PayloadTypeDiagMessageNegAck:    true,
}

// Sentinel errors for header decode failures.
var (
	ErrShortHeader        = errors.New("wire: fewer than 8 header bytes available")
	ErrVersionMismatch    = errors.New("wire: inverse protocol version byte mismatch")
	ErrUnknownPayloadType = errors.New("wire: unknown payload type")
	ErrPayloadTooLarge    = errors.New("wire: payload length exceeds configured receive buffer")
)

// Header is the decoded 8-byte DoIP generic header.
type Header struct {
	ProtocolVersion    byte
	InverseVersion     byte
	PayloadType        PayloadType
	PayloadLength      uint32
}

// EncodeHeader produces the 8-byte generic header for a frame carrying
// payloadLength bytes of the given type, sent at the given protocol version.
func EncodeHeader(version byte, payloadType PayloadType, payloadLength uint32) []byte {
	b := make([]byte, HeaderLength)
	b[0] = version
	b[1] = ^version
	binary.BigEndian.PutUint16(b[2:4], uint16(payloadType))
	binary.BigEndian.PutUint32(b[4:8], payloadLength)
	return b
}

// EncodeFrame encodes a complete DoIP frame: header followed by payload.
func EncodeFrame(version byte, payloadType PayloadType, payload []byte) []byte {
	frame := make([]byte, 0, HeaderLength+len(payload))
	frame = append(frame, EncodeHeader(version, payloadType, uint32(len(payload)))...)
	frame = append(frame, payload...)
	return frame
}

// DecodeHeader decodes the first 8 bytes of b into a Header. It fails if
// fewer than 8 bytes are available, the inverse-version byte does not match,
// the version is neither ProtocolVersion2 nor ProtocolVersion3, or the
// payload type is outside the set this core understands.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, ErrShortHeader
	}
	version := b[0]
	inv := b[1]
	if inv != ^version {
		return Header{}, ErrVersionMismatch
	}
	if version != ProtocolVersion2 && version != ProtocolVersion3 {
		return Header{}, errors.Wrapf(ErrVersionMismatch, "unsupported protocol version 0x%02x", version)
	}
	pt := PayloadType(binary.BigEndian.Uint16(b[2:4]))
	if !knownPayloadTypes[pt] {
		return Header{}, errors.Wrapf(ErrUnknownPayloadType, "type 0x%04x", uint16(pt))
	}
	length := binary.BigEndian.Uint32(b[4:8])
	return Header{
		ProtocolVersion: version,
		InverseVersion:  inv,
		PayloadType:     pt,
		PayloadLength:   length,
	}, nil
}

// CheckPayloadLength returns ErrPayloadTooLarge when length exceeds the
// configured receive buffer size for a channel.
func CheckPayloadLength(length uint32, rxBufferSize uint16) error {
	if length > uint32(rxBufferSize) {
		return errors.Wrapf(ErrPayloadTooLarge, "length %d > buffer %d", length, rxBufferSize)
	}
	return nil
}
