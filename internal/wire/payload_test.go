package wire

import (
	"bytes"
	"testing"
)

func TestRoutingActivationRequestRoundTrip(t *testing.T) {
	req := RoutingActivationRequest{SourceAddress: 0x0E00, ActivationType: ActivationTypeDefault}
	body := EncodeRoutingActivationRequest(req)
	if len(body) != 7 {
		t.Fatalf("encoded length = %d, want 7", len(body))
	}
	decoded, err := DecodeRoutingActivationRequest(body)
	if err != nil {
		t.Fatalf("DecodeRoutingActivationRequest: %v", err)
	}
	if decoded.SourceAddress != req.SourceAddress || decoded.ActivationType != req.ActivationType {
		t.Errorf("decoded = %+v, want %+v", decoded, req)
	}
}

func TestRoutingActivationResponseRoundTrip(t *testing.T) {
	res := RoutingActivationResponse{ClientAddress: 0x0E00, ServerAddress: 0xFA25, Code: RoutingActivationCodeSuccess}
	body := EncodeRoutingActivationResponse(res)
	if len(body) != 9 {
		t.Fatalf("encoded length = %d, want 9", len(body))
	}
	decoded, err := DecodeRoutingActivationResponse(body)
	if err != nil {
		t.Fatalf("DecodeRoutingActivationResponse: %v", err)
	}
	if decoded.ClientAddress != res.ClientAddress || decoded.ServerAddress != res.ServerAddress || decoded.Code != res.Code {
		t.Errorf("decoded = %+v, want %+v", decoded, res)
	}
	if !decoded.Code.Success() {
		t.Error("expected Code.Success() to be true for 0x10")
	}
}

func TestRoutingActivationResponseFailureCodes(t *testing.T) {
	codes := []RoutingActivationCode{
		RoutingActivationCodeUnknownSourceAddress,
		RoutingActivationCodeAllSocketsActive,
		RoutingActivationCodeAuthenticationMissing,
		RoutingActivationCodeConfirmationRejected,
	}
	for _, code := range codes {
		res := RoutingActivationResponse{ClientAddress: 1, ServerAddress: 2, Code: code}
		decoded, err := DecodeRoutingActivationResponse(EncodeRoutingActivationResponse(res))
		if err != nil {
			t.Fatalf("code 0x%02x: %v", byte(code), err)
		}
		if decoded.Code.Success() {
			t.Errorf("code 0x%02x: Success() = true, want false", byte(code))
		}
	}
}

func TestDiagMessageRoundTrip(t *testing.T) {
	msg := DiagMessage{SourceAddress: 0x0E00, TargetAddress: 0xFA25, Data: []byte{0x22, 0xF1, 0x90}}
	body := EncodeDiagMessage(msg)
	decoded, err := DecodeDiagMessage(body)
	if err != nil {
		t.Fatalf("DecodeDiagMessage: %v", err)
	}
	if decoded.SourceAddress != msg.SourceAddress || decoded.TargetAddress != msg.TargetAddress {
		t.Errorf("addresses = %04x/%04x, want %04x/%04x", decoded.SourceAddress, decoded.TargetAddress, msg.SourceAddress, msg.TargetAddress)
	}
	if !bytes.Equal(decoded.Data, msg.Data) {
		t.Errorf("Data = %x, want %x", decoded.Data, msg.Data)
	}
}

func TestDiagAckRoundTrip(t *testing.T) {
	ack := DiagAck{SourceAddress: 0xFA25, TargetAddress: 0x0E00, AckCode: AckCodePositive}
	body := EncodeDiagAck(ack)
	if len(body) != 5 {
		t.Fatalf("encoded length = %d, want 5", len(body))
	}
	decoded, err := DecodeDiagAck(body)
	if err != nil {
		t.Fatalf("DecodeDiagAck: %v", err)
	}
	if decoded.AckCode != AckCodePositive {
		t.Errorf("AckCode = 0x%02x, want positive", decoded.AckCode)
	}
}

func TestIsResponsePending(t *testing.T) {
	cases := []struct {
		data []byte
		want bool
	}{
		{[]byte{0x7F, 0x22, 0x78}, true},
		{[]byte{0x7F, 0x22, 0x78, 0xFF}, true},
		{[]byte{0x7F, 0x22, 0x31}, false}, // requestOutOfRange, not pending
		{[]byte{0x62, 0xF1, 0x90, 0x01}, false},
		{[]byte{0x7F, 0x22}, false}, // too short
	}
	for _, c := range cases {
		if got := IsResponsePending(c.data); got != c.want {
			t.Errorf("IsResponsePending(%x) = %v, want %v", c.data, got, c.want)
		}
	}
}

func TestVehicleAnnouncementRoundTrip(t *testing.T) {
	v := VehicleAnnouncement{
		VIN:            "ABCDEFGH123456789",
		LogicalAddress: 0xFA25,
		FurtherAction:  0,
	}
	v.VIN = v.VIN[:17]
	copy(v.EID[:], []byte{0x00, 0x02, 0x36, 0x31, 0x00, 0x1C})
	copy(v.GID[:], []byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F})

	body, err := EncodeVehicleAnnouncement(v)
	if err != nil {
		t.Fatalf("EncodeVehicleAnnouncement: %v", err)
	}
	if len(body) != 32 {
		t.Fatalf("encoded length = %d, want 32", len(body))
	}
	decoded, err := DecodeVehicleAnnouncement(body)
	if err != nil {
		t.Fatalf("DecodeVehicleAnnouncement: %v", err)
	}
	if decoded.VIN != v.VIN || decoded.LogicalAddress != v.LogicalAddress {
		t.Errorf("decoded = %+v, want VIN/LA %s/%04x", decoded, v.VIN, v.LogicalAddress)
	}
	if decoded.EID != v.EID || decoded.GID != v.GID {
		t.Errorf("decoded EID/GID mismatch: %+v", decoded)
	}
	if decoded.SyncStatus != nil {
		t.Error("expected nil SyncStatus for 32-byte body")
	}
}

func TestVehicleAnnouncementWithSyncStatus(t *testing.T) {
	v := VehicleAnnouncement{VIN: "ABCDEFGH123456789", LogicalAddress: 0xFA26}
	sync := byte(0x10)
	v.SyncStatus = &sync
	body, err := EncodeVehicleAnnouncement(v)
	if err != nil {
		t.Fatalf("EncodeVehicleAnnouncement: %v", err)
	}
	if len(body) != 33 {
		t.Fatalf("encoded length = %d, want 33", len(body))
	}
	decoded, err := DecodeVehicleAnnouncement(body)
	if err != nil {
		t.Fatalf("DecodeVehicleAnnouncement: %v", err)
	}
	if decoded.SyncStatus == nil || *decoded.SyncStatus != sync {
		t.Errorf("SyncStatus = %v, want %#v", decoded.SyncStatus, sync)
	}
}

func TestEncodeVehicleAnnouncementInvalidVIN(t *testing.T) {
	_, err := EncodeVehicleAnnouncement(VehicleAnnouncement{VIN: "TOO_SHORT"})
	if err != ErrInvalidVIN {
		t.Fatalf("err = %v, want ErrInvalidVIN", err)
	}
}

func TestEncodeVehicleIDRequestEID(t *testing.T) {
	body, err := EncodeVehicleIDRequestEID("00:02:36:31:00:1C")
	if err != nil {
		t.Fatalf("EncodeVehicleIDRequestEID: %v", err)
	}
	want := []byte{0x00, 0x02, 0x36, 0x31, 0x00, 0x1C}
	if !bytes.Equal(body, want) {
		t.Errorf("body = %x, want %x", body, want)
	}
}

func TestEncodeVehicleIDRequestVIN(t *testing.T) {
	body, err := EncodeVehicleIDRequestVIN("ABCDEFGH123456789")
	if err != nil {
		t.Fatalf("EncodeVehicleIDRequestVIN: %v", err)
	}
	if len(body) != 17 {
		t.Fatalf("body length = %d, want 17", len(body))
	}
}

func TestEncodeVehicleIDRequestVINInvalid(t *testing.T) {
	if _, err := EncodeVehicleIDRequestVIN("SHORT"); err != ErrInvalidVIN {
		t.Fatalf("err = %v, want ErrInvalidVIN", err)
	}
}

func TestPayloadFraming(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, p := range cases {
		frame := EncodeFrame(ProtocolVersion3, PayloadTypeDiagMessage, p)
		header, err := DecodeHeader(frame[:HeaderLength])
		if err != nil {
			t.Fatalf("DecodeHeader: %v", err)
		}
		if header.PayloadType != PayloadTypeDiagMessage {
			t.Errorf("PayloadType = 0x%04x, want 0x%04x", header.PayloadType, PayloadTypeDiagMessage)
		}
		got := frame[HeaderLength : HeaderLength+int(header.PayloadLength)]
		if !bytes.Equal(got, p) {
			t.Errorf("payload round trip mismatch: got %x, want %x", got, p)
		}
	}
}
