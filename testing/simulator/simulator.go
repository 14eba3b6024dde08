// Package simulator is a scriptable fake DoIP server for exercising a real
// client against a real TCP socket without a vehicle on the other end. It
// serves TCP only; UDP discovery is not simulated. It generalizes the
// inline fakeServer helper internal/channel's own tests use into something
// importable by this module's handler tests and by downstream consumers
// testing their own code against this client.
package simulator

import (
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/anodyne74/doip-client/internal/wire"
)

// ResponseFunc computes the UDS response bytes for a request, given the
// request's service ID (its first byte) and full payload.
type ResponseFunc func(sid byte, request []byte) []byte

// Simulator is a one-conversation-at-a-time fake DoIP server: it accepts a
// single TCP connection, performs routing activation, and then answers
// SendDiagnosticRequest calls from a caller-supplied response table.
type Simulator struct {
	ClientAddress  uint16
	ServerAddress  uint16
	ActivationCode wire.RoutingActivationCode
	Responses      map[byte]ResponseFunc

	ln net.Listener

	mu     sync.Mutex
	closed bool
}

// New starts listening on an ephemeral TCP port and returns a Simulator
// ready to Serve, with ServerAddress set to 0xFA25 and ActivationCode to
// Success; either field may be overwritten before Serve is called.
func New() (*Simulator, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &Simulator{
		ServerAddress:  0xFA25,
		ActivationCode: wire.RoutingActivationCodeSuccess,
		Responses:      make(map[byte]ResponseFunc),
		ln:             ln,
	}, nil
}

// HostPort returns the address a TcpChannel should dial.
func (s *Simulator) HostPort() (string, uint16) {
	host, portStr, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, uint16(port)
}

// OnRequest registers the response to send back when a diagnostic request's
// first byte (its service ID) matches sid.
func (s *Simulator) OnRequest(sid byte, fn ResponseFunc) {
	s.Responses[sid] = fn
}

// Close stops accepting new connections.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ln.Close()
}

// Serve accepts exactly one connection, performs routing activation, then
// answers diagnostic requests from the Responses table until the connection
// closes. It runs until the listener is closed or the peer disconnects, and
// is meant to be invoked with `go sim.Serve()`.
func (s *Simulator) Serve() error {
	conn, err := s.ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, _, err := readFrame(conn); err != nil {
		return err
	}
	res := wire.RoutingActivationResponse{
		ClientAddress: s.ClientAddress,
		ServerAddress: s.ServerAddress,
		Code:          s.ActivationCode,
	}
	if _, err := conn.Write(wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeRoutingActivationRes, wire.EncodeRoutingActivationResponse(res))); err != nil {
		return err
	}
	if !s.ActivationCode.Success() {
		return nil
	}

	for {
		h, body, err := readFrame(conn)
		if err != nil {
			return nil
		}
		if h.PayloadType != wire.PayloadTypeDiagMessage {
			continue
		}
		req, err := wire.DecodeDiagMessage(body)
		if err != nil {
			continue
		}

		ack := wire.DiagAck{SourceAddress: req.TargetAddress, TargetAddress: req.SourceAddress, AckCode: wire.AckCodePositive}
		if _, err := conn.Write(wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeDiagMessagePosAck, wire.EncodeDiagAck(ack))); err != nil {
			return err
		}

		sid := byte(0)
		if len(req.Data) > 0 {
			sid = req.Data[0]
		}
		fn, ok := s.Responses[sid]
		if !ok {
			continue
		}
		respData := fn(sid, req.Data)
		resp := wire.DiagMessage{SourceAddress: req.TargetAddress, TargetAddress: req.SourceAddress, Data: respData}
		if _, err := conn.Write(wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeDiagMessage, wire.EncodeDiagMessage(resp))); err != nil {
			return err
		}
	}
}

func readFrame(conn net.Conn) (wire.Header, []byte, error) {
	header := make([]byte, wire.HeaderLength)
	if _, err := io.ReadFull(conn, header); err != nil {
		return wire.Header{}, nil, err
	}
	h, err := wire.DecodeHeader(header)
	if err != nil {
		return wire.Header{}, nil, err
	}
	payload := make([]byte, h.PayloadLength)
	if h.PayloadLength > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return wire.Header{}, nil, err
		}
	}
	return h, payload, nil
}
