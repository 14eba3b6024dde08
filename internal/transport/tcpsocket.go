// Package transport implements the socket abstractions DoIP channels sit on
// top of: a TCP client socket with a background reader goroutine, and UDP
// sockets supporting broadcast and unicast bindings. This is the "socket
// provider" collaborator contract from spec.md §6, backed by the standard
// library net package.
package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/anodyne74/doip-client/internal/wire"
)

// Logger is the minimal logging façade every transport component accepts.
// The standard library *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...interface{}) {}

// Discard is a Logger that drops everything, used by tests and callers that
// pass a nil Logger.
var Discard Logger = discardLogger{}

func orDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}

// TCPFrameHandler receives decoded frames, terminal read errors, and
// protocol decode violations from a TCPSocket's background reader
// goroutine.
type TCPFrameHandler interface {
	HandleFrame(header wire.Header, payload []byte)
	HandleReadError(err error)

	// HandleDecodeError reports a header or payload-length violation
	// (inverse-version mismatch, unknown payload type, oversize payload)
	// distinctly from a plain I/O failure, so the handler can send a DoIP
	// GenericNack before tearing the connection down.
	HandleDecodeError(err error)
}

// TCPSocket is a connected DoIP TCP client socket with exactly one
// background reader goroutine, matching the two-thread concurrency model in
// spec.md §4.3/§5: the caller thread writes, the reader goroutine reads and
// dispatches.
type TCPSocket struct {
	conn         net.Conn
	rxBufferSize uint16
	handler      TCPFrameHandler
	logger       Logger

	closeOnce sync.Once
	done      chan struct{}
}

// DialTCP connects to host:port and starts the background reader goroutine.
// Connect failures are returned directly without starting the reader, per
// spec.md §4.3 ("TCP connect failure... maps directly to ConnectionFailed").
func DialTCP(host string, port uint16, rxBufferSize uint16, handler TCPFrameHandler, logger Logger) (*TCPSocket, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: tcp connect to %s", addr)
	}
	s := &TCPSocket{
		conn:         conn,
		rxBufferSize: rxBufferSize,
		handler:      handler,
		logger:       orDiscard(logger),
		done:         make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// readLoop implements the receive pipeline from spec.md §4.3: read exactly 8
// header bytes, decode the payload length, read exactly that many further
// bytes, hand the frame to the dispatcher. Any header error or a length
// exceeding rxBufferSize is reported to the handler, which is responsible
// for sending the DoIP NACK and closing the connection; the read loop itself
// just stops.
func (s *TCPSocket) readLoop() {
	header := make([]byte, wire.HeaderLength)
	for {
		if _, err := io.ReadFull(s.conn, header); err != nil {
			s.reportReadError(err)
			return
		}
		h, err := wire.DecodeHeader(header)
		if err != nil {
			s.logger.Printf("tcp rx: header decode error: %v", err)
			s.reportDecodeError(err)
			return
		}
		if err := wire.CheckPayloadLength(h.PayloadLength, s.rxBufferSize); err != nil {
			s.logger.Printf("tcp rx: %v", err)
			s.reportDecodeError(err)
			return
		}
		var payload []byte
		if h.PayloadLength > 0 {
			payload = make([]byte, h.PayloadLength)
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				s.reportReadError(err)
				return
			}
		}
		s.logger.Printf("tcp rx: type=0x%04x len=%d", uint16(h.PayloadType), h.PayloadLength)
		s.handler.HandleFrame(h, payload)
	}
}

// reportReadError swallows the error that results from our own Close (the
// done channel is closed first), and reports anything else to the handler.
func (s *TCPSocket) reportReadError(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	s.handler.HandleReadError(err)
}

// reportDecodeError is reportReadError's counterpart for a header or
// payload-length violation: the connection is still up for writing, so the
// handler gets a chance to send a GenericNack before it tears things down.
func (s *TCPSocket) reportDecodeError(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	s.handler.HandleDecodeError(err)
}

// Write sends frame (header + payload already encoded) on the connection.
func (s *TCPSocket) Write(frame []byte) error {
	if _, err := s.conn.Write(frame); err != nil {
		return errors.Wrap(err, "transport: tcp write")
	}
	return nil
}

// Close shuts down the connection and stops the reader goroutine. Safe to
// call more than once.
func (s *TCPSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// RemoteAddr returns the connected peer's address, for logging.
func (s *TCPSocket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
