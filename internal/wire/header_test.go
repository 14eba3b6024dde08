package wire

import (
	"testing"

	"github.com/pkg/errors"
)

func TestHeaderRoundTrip(t *testing.T) {
	versions := []byte{ProtocolVersion2, ProtocolVersion3}
	lengths := []uint32{0, 1, 7, 4096}

	for _, version := range versions {
		for _, length := range lengths {
			encoded := EncodeHeader(version, PayloadTypeDiagMessage, length)
			if len(encoded) != HeaderLength {
				t.Fatalf("encoded header length = %d, want %d", len(encoded), HeaderLength)
			}
			decoded, err := DecodeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeHeader(%x): %v", encoded, err)
			}
			if decoded.ProtocolVersion != version {
				t.Errorf("ProtocolVersion = 0x%02x, want 0x%02x", decoded.ProtocolVersion, version)
			}
			if decoded.InverseVersion != ^version {
				t.Errorf("InverseVersion = 0x%02x, want 0x%02x", decoded.InverseVersion, ^version)
			}
			if decoded.PayloadType != PayloadTypeDiagMessage {
				t.Errorf("PayloadType = 0x%04x, want 0x%04x", decoded.PayloadType, PayloadTypeDiagMessage)
			}
			if decoded.PayloadLength != length {
				t.Errorf("PayloadLength = %d, want %d", decoded.PayloadLength, length)
			}
		}
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	for n := 0; n < HeaderLength; n++ {
		_, err := DecodeHeader(make([]byte, n))
		if !errors.Is(err, ErrShortHeader) {
			t.Errorf("DecodeHeader(%d bytes): err = %v, want ErrShortHeader", n, err)
		}
	}
}

func TestDecodeHeaderVersionMismatch(t *testing.T) {
	b := EncodeHeader(ProtocolVersion3, PayloadTypeDiagMessage, 0)
	b[1] = 0x00 // corrupt the inverse-version byte
	_, err := DecodeHeader(b)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestDecodeHeaderUnknownPayloadType(t *testing.T) {
	b := EncodeHeader(ProtocolVersion3, PayloadTypeDiagMessage, 0)
	b[2], b[3] = 0x12, 0x34
	_, err := DecodeHeader(b)
	if !errors.Is(err, ErrUnknownPayloadType) {
		t.Fatalf("err = %v, want ErrUnknownPayloadType", err)
	}
}

func TestCheckPayloadLength(t *testing.T) {
	if err := CheckPayloadLength(100, 200); err != nil {
		t.Errorf("unexpected error for length within buffer: %v", err)
	}
	if err := CheckPayloadLength(300, 200); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	payload := []byte{0x0E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	frame := EncodeFrame(ProtocolVersion3, PayloadTypeRoutingActivationReq, payload)
	want := []byte{0x03, 0xFC, 0x00, 0x05, 0x00, 0x00, 0x00, 0x07,
		0x0E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if len(frame) != len(want) {
		t.Fatalf("frame length = %d, want %d", len(frame), len(want))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("frame[%d] = 0x%02x, want 0x%02x", i, frame[i], want[i])
		}
	}
}
