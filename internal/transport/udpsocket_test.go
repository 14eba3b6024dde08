package transport

import (
	"net"
	"sync"
	"testing"
	"time"
)

type recordingUDPHandler struct {
	mu   sync.Mutex
	data [][]byte
	from []*net.UDPAddr
}

func (h *recordingUDPHandler) HandleDatagram(from *net.UDPAddr, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = append(h.data, data)
	h.from = append(h.from, from)
}

func (h *recordingUDPHandler) HandleReadError(err error) {}

func (h *recordingUDPHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}

func TestUDPSocketSendAndReceive(t *testing.T) {
	handlerA := &recordingUDPHandler{}
	a, err := ListenUDP("127.0.0.1", 0, false, handlerA, nil)
	if err != nil {
		t.Fatalf("ListenUDP a: %v", err)
	}
	defer a.Close()

	handlerB := &recordingUDPHandler{}
	b, err := ListenUDP("127.0.0.1", 0, false, handlerB, nil)
	if err != nil {
		t.Fatalf("ListenUDP b: %v", err)
	}
	defer b.Close()

	payload := []byte{0x01, 0x02, 0x03}
	if err := a.SendTo(payload, b.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	deadline := time.After(time.Second)
	for handlerB.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for datagram")
		case <-time.After(time.Millisecond):
		}
	}

	if string(handlerB.data[0]) != string(payload) {
		t.Errorf("payload = %x, want %x", handlerB.data[0], payload)
	}
}

func TestUDPSocketBroadcastFlagDoesNotBreakListen(t *testing.T) {
	handler := &recordingUDPHandler{}
	sock, err := ListenUDP("0.0.0.0", 0, true, handler, nil)
	if err != nil {
		t.Fatalf("ListenUDP with broadcast: %v", err)
	}
	defer sock.Close()
}
