package wire

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors for payload decode/encode failures.
var (
	ErrShortPayload = errors.New("wire: payload shorter than required for its type")
	ErrInvalidVIN   = errors.New("wire: VIN must be exactly 17 bytes")
	ErrInvalidEID   = errors.New("wire: EID must be exactly 6 hex-pair groups")
)

// ActivationType values a client may request routing activation with.
const (
	ActivationTypeDefault byte = 0x00
)

// RoutingActivationCode is the response-code byte of a routing activation
// response. Only 0x10 indicates success; every other defined value explains
// a specific rejection reason rather than collapsing to one opaque failure.
type RoutingActivationCode byte

const (
	RoutingActivationCodeUnknownSourceAddress    RoutingActivationCode = 0x00
	RoutingActivationCodeAllSocketsActive        RoutingActivationCode = 0x02
	RoutingActivationCodeSourceAddressMismatch   RoutingActivationCode = 0x03
	RoutingActivationCodeSourceAddressUnknown    RoutingActivationCode = 0x04
	RoutingActivationCodeAlreadyActive           RoutingActivationCode = 0x05
	RoutingActivationCodeAuthenticationMissing   RoutingActivationCode = 0x06
	RoutingActivationCodeConfirmationRejected    RoutingActivationCode = 0x07
	RoutingActivationCodeSuccess                 RoutingActivationCode = 0x10
)

// Success reports whether the code is the single success value.
func (c RoutingActivationCode) Success() bool { return c == RoutingActivationCodeSuccess }

// RoutingActivationRequest is the body of a 0x0005 frame.
type RoutingActivationRequest struct {
	SourceAddress  uint16
	ActivationType byte
	OEM            []byte // nil, or exactly 4 OEM-specific bytes
}

// EncodeRoutingActivationRequest encodes r's body (without the generic header).
func EncodeRoutingActivationRequest(r RoutingActivationRequest) []byte {
	body := make([]byte, 0, 11)
	buf2 := make([]byte, 2)
	binary.BigEndian.PutUint16(buf2, r.SourceAddress)
	body = append(body, buf2...)
	body = append(body, r.ActivationType)
	body = append(body, 0, 0, 0, 0)
	if len(r.OEM) == 4 {
		body = append(body, r.OEM...)
	}
	return body
}

// DecodeRoutingActivationRequest decodes a 0x0005 body.
func DecodeRoutingActivationRequest(b []byte) (RoutingActivationRequest, error) {
	if len(b) < 7 {
		return RoutingActivationRequest{}, ErrShortPayload
	}
	r := RoutingActivationRequest{
		SourceAddress:  binary.BigEndian.Uint16(b[0:2]),
		ActivationType: b[2],
	}
	if len(b) >= 11 {
		r.OEM = append([]byte(nil), b[7:11]...)
	}
	return r, nil
}

// RoutingActivationResponse is the body of a 0x0006 frame.
type RoutingActivationResponse struct {
	ClientAddress uint16
	ServerAddress uint16
	Code          RoutingActivationCode
	OEM           []byte
}

// EncodeRoutingActivationResponse encodes r's body.
func EncodeRoutingActivationResponse(r RoutingActivationResponse) []byte {
	body := make([]byte, 0, 13)
	buf2 := make([]byte, 2)
	binary.BigEndian.PutUint16(buf2, r.ClientAddress)
	body = append(body, buf2...)
	binary.BigEndian.PutUint16(buf2, r.ServerAddress)
	body = append(body, buf2...)
	body = append(body, byte(r.Code))
	body = append(body, 0, 0, 0, 0)
	if len(r.OEM) == 4 {
		body = append(body, r.OEM...)
	}
	return body
}

// DecodeRoutingActivationResponse decodes a 0x0006 body.
func DecodeRoutingActivationResponse(b []byte) (RoutingActivationResponse, error) {
	if len(b) < 9 {
		return RoutingActivationResponse{}, ErrShortPayload
	}
	r := RoutingActivationResponse{
		ClientAddress: binary.BigEndian.Uint16(b[0:2]),
		ServerAddress: binary.BigEndian.Uint16(b[2:4]),
		Code:          RoutingActivationCode(b[4]),
	}
	if len(b) >= 13 {
		r.OEM = append([]byte(nil), b[9:13]...)
	}
	return r, nil
}

// DiagMessage is the body of a 0x8001 diagnostic message frame, carried both
// request (client->server) and response (server->client) direction.
type DiagMessage struct {
	SourceAddress uint16
	TargetAddress uint16
	Data          []byte
}

// EncodeDiagMessage encodes m's body.
func EncodeDiagMessage(m DiagMessage) []byte {
	body := make([]byte, 4, 4+len(m.Data))
	binary.BigEndian.PutUint16(body[0:2], m.SourceAddress)
	binary.BigEndian.PutUint16(body[2:4], m.TargetAddress)
	return append(body, m.Data...)
}

// DecodeDiagMessage decodes a 0x8001 body.
func DecodeDiagMessage(b []byte) (DiagMessage, error) {
	if len(b) < 4 {
		return DiagMessage{}, ErrShortPayload
	}
	return DiagMessage{
		SourceAddress: binary.BigEndian.Uint16(b[0:2]),
		TargetAddress: binary.BigEndian.Uint16(b[2:4]),
		Data:          append([]byte(nil), b[4:]...),
	}, nil
}

// Ack codes carried in a 0x8002/0x8003 body.
const (
	AckCodePositive                byte = 0x00
	NackCodeInvalidSourceAddress   byte = 0x02
	NackCodeUnknownTargetAddress   byte = 0x03
	NackCodeMessageTooLarge        byte = 0x04
	NackCodeOutOfMemory            byte = 0x05
	NackCodeTargetUnreachable      byte = 0x06
	NackCodeUnknownNetwork         byte = 0x07
	NackCodeTransportProtocolError byte = 0x08
)

// DiagAck is the body of a 0x8002 (positive) or 0x8003 (negative) frame.
type DiagAck struct {
	SourceAddress uint16
	TargetAddress uint16
	AckCode       byte
	Echo          []byte // optional echoed previous message bytes
}

// EncodeDiagAck encodes a's body.
func EncodeDiagAck(a DiagAck) []byte {
	body := make([]byte, 5, 5+len(a.Echo))
	binary.BigEndian.PutUint16(body[0:2], a.SourceAddress)
	binary.BigEndian.PutUint16(body[2:4], a.TargetAddress)
	body[4] = a.AckCode
	return append(body, a.Echo...)
}

// DecodeDiagAck decodes a 0x8002/0x8003 body.
func DecodeDiagAck(b []byte) (DiagAck, error) {
	if len(b) < 5 {
		return DiagAck{}, ErrShortPayload
	}
	a := DiagAck{
		SourceAddress: binary.BigEndian.Uint16(b[0:2]),
		TargetAddress: binary.BigEndian.Uint16(b[2:4]),
		AckCode:       b[4],
	}
	if len(b) > 5 {
		a.Echo = append([]byte(nil), b[5:]...)
	}
	return a, nil
}

// IsResponsePending reports whether a UDS response's first three bytes match
// the negative-response pattern 0x7F <echoed-SID> 0x78
// (requestCorrectlyReceived-ResponsePending).
func IsResponsePending(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x7F && data[2] == 0x78
}

// VehicleAnnouncement is the body of a 0x0004 frame (32 or 33 bytes).
type VehicleAnnouncement struct {
	VIN           string
	LogicalAddress uint16
	EID           [6]byte
	GID           [6]byte
	FurtherAction byte
	SyncStatus    *byte // present only when the payload carried the optional 33rd byte
}

// EncodeVehicleAnnouncement encodes v's body.
func EncodeVehicleAnnouncement(v VehicleAnnouncement) ([]byte, error) {
	if len(v.VIN) != 17 {
		return nil, ErrInvalidVIN
	}
	body := make([]byte, 0, 33)
	body = append(body, []byte(v.VIN)...)
	buf2 := make([]byte, 2)
	binary.BigEndian.PutUint16(buf2, v.LogicalAddress)
	body = append(body, buf2...)
	body = append(body, v.EID[:]...)
	body = append(body, v.GID[:]...)
	body = append(body, v.FurtherAction)
	if v.SyncStatus != nil {
		body = append(body, *v.SyncStatus)
	}
	return body, nil
}

// DecodeVehicleAnnouncement decodes a 0x0004 body of 32 or 33 bytes.
func DecodeVehicleAnnouncement(b []byte) (VehicleAnnouncement, error) {
	if len(b) != 32 && len(b) != 33 {
		return VehicleAnnouncement{}, ErrShortPayload
	}
	v := VehicleAnnouncement{
		VIN:            string(b[0:17]),
		LogicalAddress: binary.BigEndian.Uint16(b[17:19]),
		FurtherAction:  b[31],
	}
	copy(v.EID[:], b[19:25])
	copy(v.GID[:], b[25:31])
	if len(b) == 33 {
		s := b[32]
		v.SyncStatus = &s
	}
	return v, nil
}

// EncodeVehicleIDRequestNone encodes the no-preselection 0x0001 body (empty).
func EncodeVehicleIDRequestNone() []byte { return nil }

// EncodeVehicleIDRequestVIN encodes the VIN-preselection 0x0003 body.
func EncodeVehicleIDRequestVIN(vin string) ([]byte, error) {
	if len(vin) != 17 {
		return nil, ErrInvalidVIN
	}
	return []byte(vin), nil
}

// EncodeVehicleIDRequestEID encodes the EID-preselection 0x0002 body, parsing
// a colon-separated hex string like "00:02:36:31:00:1C" into 6 raw bytes.
func EncodeVehicleIDRequestEID(eidHex string) ([]byte, error) {
	parts := strings.Split(eidHex, ":")
	if len(parts) != 6 {
		return nil, ErrInvalidEID
	}
	out := make([]byte, 6)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidEID, "segment %q", p)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// GenericNack is the body of a 0x0000 generic DoIP negative acknowledge.
type GenericNack struct {
	Code byte
}

// Generic NACK codes (ISO 13400-2 table "DoIP generic header negative
// acknowledge codes"); the core only ever sends NackIncorrectPatternFormat,
// NackUnknownPayloadType or NackInvalidPayloadLength on receive-pipeline
// errors (see internal/channel).
const (
	NackIncorrectPatternFormat byte = 0x00
	NackUnknownPayloadType     byte = 0x01
	NackMessageTooLarge        byte = 0x02
	NackOutOfMemory            byte = 0x03
	NackInvalidPayloadLength   byte = 0x04
)

// EncodeGenericNack encodes n's body.
func EncodeGenericNack(n GenericNack) []byte { return []byte{n.Code} }

// DecodeGenericNack decodes a 0x0000 body.
func DecodeGenericNack(b []byte) (GenericNack, error) {
	if len(b) < 1 {
		return GenericNack{}, ErrShortPayload
	}
	return GenericNack{Code: b[0]}, nil
}
