package transport

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/anodyne74/doip-client/internal/wire"
)

type recordingHandler struct {
	mu      sync.Mutex
	frames  []wire.Header
	payload [][]byte
	errCh   chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errCh: make(chan error, 1)}
}

func (h *recordingHandler) HandleFrame(header wire.Header, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, header)
	h.payload = append(h.payload, payload)
}

func (h *recordingHandler) HandleReadError(err error) {
	h.errCh <- err
}

func (h *recordingHandler) HandleDecodeError(err error) {
	h.errCh <- err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func listenOnce(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, ln.Addr().String()
}

func TestTCPSocketReceivesFrame(t *testing.T) {
	ln, addr := listenOnce(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	host, port := splitHostPort(t, addr)
	handler := newRecordingHandler()
	sock, err := DialTCP(host, port, 8192, handler, nil)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer sock.Close()

	conn := <-accepted
	defer conn.Close()

	frame := wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeDiagMessage, []byte{0x0E, 0x00, 0xFA, 0x25, 0x22, 0xF1, 0x90})
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("server write: %v", err)
	}

	deadline := time.After(time.Second)
	for handler.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		case <-time.After(time.Millisecond):
		}
	}

	if handler.frames[0].PayloadType != wire.PayloadTypeDiagMessage {
		t.Errorf("PayloadType = 0x%04x, want PayloadTypeDiagMessage", handler.frames[0].PayloadType)
	}
}

func TestTCPSocketReportsPeerClose(t *testing.T) {
	ln, addr := listenOnce(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	host, port := splitHostPort(t, addr)
	handler := newRecordingHandler()
	sock, err := DialTCP(host, port, 8192, handler, nil)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer sock.Close()

	conn := <-accepted
	conn.Close()

	select {
	case err := <-handler.errCh:
		if err != io.EOF {
			t.Logf("peer-close error: %v (acceptable, not necessarily io.EOF)", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for read error report")
	}
}

func TestTCPSocketCloseStopsReaderSilently(t *testing.T) {
	ln, addr := listenOnce(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	host, port := splitHostPort(t, addr)
	handler := newRecordingHandler()
	sock, err := DialTCP(host, port, 8192, handler, nil)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	conn := <-accepted
	defer conn.Close()

	if err := sock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-handler.errCh:
		t.Fatalf("unexpected error report after intentional Close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func splitHostPort(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%s): %v", addr, err)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %s: %v", portStr, err)
	}
	return host, uint16(p)
}
