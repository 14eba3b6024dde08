package channel

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/anodyne74/doip-client/internal/synctimer"
	"github.com/anodyne74/doip-client/internal/transport"
	"github.com/anodyne74/doip-client/internal/wire"
)

// defaultActivationTimeout is used when a conversation's config does not
// override it; the wire spec for routing activation assumes 2000 ms.
const defaultActivationTimeout = 2000 * time.Millisecond

type eventKind uint8

const (
	evNone eventKind = iota
	evRoutingActivationResponse
	evDiagPositiveAck
	evDiagNegativeAck
	evDiagResponse
	evSocketError
	evHeaderError
)

// inboundEvent is the single-slot mailbox the reader goroutine fills and the
// caller goroutine drains after the sync timer wakes it. It is the "latest
// decoded frame" holder from the design: at most one event is ever pending,
// since at most one request is ever in flight.
type inboundEvent struct {
	kind    eventKind
	raCode  wire.RoutingActivationCode
	nack    byte
	payload []byte
	err     error
}

// TcpChannel owns one DoIP TCP connection to a specific server and sequences
// one outstanding UDS request at a time through the routing-activation and
// diagnostic-message sub-state machines.
type TcpChannel struct {
	clientAddress      uint16
	rxBufferSize       uint16
	activationTimeout  time.Duration
	p2ClientMax        time.Duration
	p2StarClientMax    time.Duration
	maxResponsePending uint16
	logger             transport.Logger
	trace              TraceFunc

	timer *synctimer.Timer

	mu              sync.Mutex
	sock            *transport.TCPSocket
	activationState RoutingActivationState
	diagState       DiagState
	serverAddress   uint16
	event           *inboundEvent
}

// TraceFunc receives every frame a channel sends or receives, tagged by
// direction ("tx"/"rx"), for optional recording by the trace package.
type TraceFunc func(direction string, h wire.Header, payload []byte)

// Config carries the per-channel tuning values a ConversationConfig owns.
type Config struct {
	ClientAddress      uint16
	RxBufferSize       uint16
	ActivationTimeout  time.Duration
	P2ClientMax        time.Duration
	P2StarClientMax    time.Duration
	MaxResponsePending uint16
	Logger             transport.Logger
	Trace              TraceFunc
}

// NewTcpChannel returns a TcpChannel in the Idle/Idle state, not yet
// connected to any socket.
func NewTcpChannel(cfg Config) *TcpChannel {
	activationTimeout := cfg.ActivationTimeout
	if activationTimeout == 0 {
		activationTimeout = defaultActivationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = transport.Discard
	}
	return &TcpChannel{
		clientAddress:      cfg.ClientAddress,
		rxBufferSize:       cfg.RxBufferSize,
		activationTimeout:  activationTimeout,
		p2ClientMax:        cfg.P2ClientMax,
		p2StarClientMax:    cfg.P2StarClientMax,
		maxResponsePending: cfg.MaxResponsePending,
		logger:             logger,
		trace:              cfg.Trace,
		timer:              synctimer.New(),
	}
}

func (c *TcpChannel) traceFrame(direction string, pt wire.PayloadType, payload []byte) {
	if c.trace == nil {
		return
	}
	c.trace(direction, wire.Header{PayloadType: pt, PayloadLength: uint32(len(payload))}, payload)
}

// ActivationState reports the current routing-activation state, for tests
// and metrics.
func (c *TcpChannel) ActivationState() RoutingActivationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activationState
}

// ConnectToHost dials host:port, performs the routing-activation handshake,
// and blocks until the handshake resolves or the activation timer expires.
func (c *TcpChannel) ConnectToHost(host string, port uint16) ConnectOutcome {
	c.mu.Lock()
	if c.activationState != RAIdle {
		c.mu.Unlock()
		return ConnectOutcome{Kind: ConnectConnectionFailed}
	}
	c.mu.Unlock()

	sock, err := transport.DialTCP(host, port, c.rxBufferSize, c, c.logger)
	if err != nil {
		return ConnectOutcome{Kind: ConnectConnectionFailed, Err: err}
	}

	c.mu.Lock()
	c.sock = sock
	c.activationState = RAWaitForRoutingActivationRes
	c.mu.Unlock()

	req := wire.RoutingActivationRequest{SourceAddress: c.clientAddress, ActivationType: wire.ActivationTypeDefault}
	frame := wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeRoutingActivationReq, wire.EncodeRoutingActivationRequest(req))
	c.logger.Printf("tcp channel: -> RoutingActivationRequest clientAddr=0x%04x", c.clientAddress)
	c.traceFrame("tx", wire.PayloadTypeRoutingActivationReq, frame[wire.HeaderLength:])
	if err := sock.Write(frame); err != nil {
		c.setActivationState(RAFailed)
		sock.Close()
		return ConnectOutcome{Kind: ConnectConnectionFailed, Err: err}
	}

	state := c.timer.Start(c.activationTimeout)
	if state == synctimer.Timeout {
		c.setActivationState(RAFailed)
		return ConnectOutcome{Kind: ConnectActivationTimeout}
	}

	ev := c.takeEvent()
	switch ev.kind {
	case evRoutingActivationResponse:
		if ev.raCode.Success() {
			c.setActivationState(RASuccessful)
			c.logger.Printf("tcp channel: RoutingActivationSuccessful")
			return ConnectOutcome{Kind: ConnectOk}
		}
		c.setActivationState(RAFailed)
		c.logger.Printf("tcp channel: RoutingActivationFailed code=0x%02x", byte(ev.raCode))
		return ConnectOutcome{Kind: ConnectActivationFailed, Code: ev.raCode}
	case evSocketError, evHeaderError:
		c.setActivationState(RAFailed)
		return ConnectOutcome{Kind: ConnectConnectionFailed, Err: ev.err}
	default:
		c.setActivationState(RAFailed)
		return ConnectOutcome{Kind: ConnectConnectionFailed}
	}
}

// Disconnect shuts the socket down and returns both sub-state machines to
// Idle. Safe to call from any non-Idle activation state.
func (c *TcpChannel) Disconnect() {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.activationState = RAIdle
	c.diagState = DiagIdle
	c.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

// SendDiagnosticRequest encodes and sends a UDS request, then drives the
// diagnostic sub-state machine through ack and (possibly repeated)
// response-pending frames until a final response, a negative ack, or a
// timeout resolves it.
func (c *TcpChannel) SendDiagnosticRequest(targetAddress uint16, data []byte) (DiagOutcome, []byte) {
	c.mu.Lock()
	if c.activationState != RASuccessful {
		c.mu.Unlock()
		return DiagOutcome{Kind: DiagNotActivated}, nil
	}
	if c.diagState != DiagIdle {
		c.mu.Unlock()
		return DiagOutcome{Kind: DiagBusy}, nil
	}
	if len(data) == 0 {
		c.mu.Unlock()
		return DiagOutcome{Kind: DiagInvalidParameter}, nil
	}
	c.diagState = DiagWaitForAck
	sock := c.sock
	c.mu.Unlock()

	msg := wire.DiagMessage{SourceAddress: c.clientAddress, TargetAddress: targetAddress, Data: data}
	frame := wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeDiagMessage, wire.EncodeDiagMessage(msg))
	c.logger.Printf("tcp channel: -> DiagMessage target=0x%04x len=%d", targetAddress, len(data))
	c.traceFrame("tx", wire.PayloadTypeDiagMessage, frame[wire.HeaderLength:])
	if err := sock.Write(frame); err != nil {
		c.mu.Lock()
		c.diagState = DiagIdle
		c.activationState = RAIdle
		dead := c.sock
		c.sock = nil
		c.mu.Unlock()
		if dead != nil {
			dead.Close()
		}
		return DiagOutcome{Kind: DiagTransmitFailed, Err: err}, nil
	}

	timeout := c.p2ClientMax
	pendingCount := uint16(0)
	for {
		state := c.timer.Start(timeout)
		if state == synctimer.Timeout {
			waitingAck := c.diagState == DiagWaitForAck
			c.setDiagState(DiagIdle)
			if waitingAck {
				return DiagOutcome{Kind: DiagAckTimeout}, nil
			}
			return DiagOutcome{Kind: DiagResponseTimeout}, nil
		}

		ev := c.takeEvent()
		switch ev.kind {
		case evDiagPositiveAck:
			c.setDiagState(DiagWaitForResponse)
			c.logger.Printf("tcp channel: <- DiagMessage positive ack")
			timeout = c.p2ClientMax
		case evDiagNegativeAck:
			c.setDiagState(DiagIdle)
			c.logger.Printf("tcp channel: <- DiagMessage negative ack code=0x%02x", ev.nack)
			return DiagOutcome{Kind: DiagNegativeAck, NackCode: ev.nack}, nil
		case evDiagResponse:
			if wire.IsResponsePending(ev.payload) {
				pendingCount++
				if c.maxResponsePending > 0 && pendingCount > c.maxResponsePending {
					c.setDiagState(DiagIdle)
					return DiagOutcome{Kind: DiagResponseTimeout}, nil
				}
				c.logger.Printf("tcp channel: <- response pending, re-arming P2*")
				timeout = c.p2StarClientMax
				continue
			}
			c.setDiagState(DiagIdle)
			c.logger.Printf("tcp channel: <- DiagMessage final response len=%d", len(ev.payload))
			return DiagOutcome{Kind: DiagOk}, ev.payload
		case evSocketError, evHeaderError:
			c.mu.Lock()
			c.diagState = DiagIdle
			c.activationState = RAIdle
			sock := c.sock
			c.sock = nil
			c.mu.Unlock()
			if sock != nil {
				sock.Close()
			}
			return DiagOutcome{Kind: DiagSocketError, Err: ev.err}, nil
		default:
			continue
		}
	}
}

// HandleFrame implements transport.TCPFrameHandler; it runs on the reader
// goroutine and only classifies a frame into the single-slot mailbox before
// waking whichever caller is blocked in the sync timer.
func (c *TcpChannel) HandleFrame(h wire.Header, payload []byte) {
	c.traceFrame("rx", h.PayloadType, payload)
	switch h.PayloadType {
	case wire.PayloadTypeRoutingActivationRes:
		res, err := wire.DecodeRoutingActivationResponse(payload)
		if err != nil {
			c.postAndWake(&inboundEvent{kind: evHeaderError, err: err})
			return
		}
		c.postAndWake(&inboundEvent{kind: evRoutingActivationResponse, raCode: res.Code})
	case wire.PayloadTypeDiagMessagePosAck:
		ack, err := wire.DecodeDiagAck(payload)
		if err != nil {
			c.postAndWake(&inboundEvent{kind: evHeaderError, err: err})
			return
		}
		c.postAndWake(&inboundEvent{kind: evDiagPositiveAck, nack: ack.AckCode})
	case wire.PayloadTypeDiagMessageNegAck:
		ack, err := wire.DecodeDiagAck(payload)
		if err != nil {
			c.postAndWake(&inboundEvent{kind: evHeaderError, err: err})
			return
		}
		c.postAndWake(&inboundEvent{kind: evDiagNegativeAck, nack: ack.AckCode})
	case wire.PayloadTypeDiagMessage:
		msg, err := wire.DecodeDiagMessage(payload)
		if err != nil {
			c.postAndWake(&inboundEvent{kind: evHeaderError, err: err})
			return
		}
		c.postAndWake(&inboundEvent{kind: evDiagResponse, payload: msg.Data})
	default:
		c.sendGenericNack(wire.NackUnknownPayloadType)
		c.postAndWake(&inboundEvent{kind: evHeaderError, err: wire.ErrUnknownPayloadType})
		c.closeSocketLocked()
	}
}

// HandleReadError implements transport.TCPFrameHandler for terminal read
// failures (peer close, I/O error on the underlying connection).
func (c *TcpChannel) HandleReadError(err error) {
	c.postAndWake(&inboundEvent{kind: evSocketError, err: err})
}

// HandleDecodeError implements transport.TCPFrameHandler for a header or
// payload-length violation. The connection is still writable at this
// point, so a GenericNack goes out before the socket is torn down and the
// caller is unblocked; an activated channel returns to RAIdle.
func (c *TcpChannel) HandleDecodeError(err error) {
	c.sendGenericNack(genericNackCode(err))
	c.postAndWake(&inboundEvent{kind: evHeaderError, err: err})
	c.closeSocketLocked()
}

// genericNackCode maps a wire decode error to the generic NACK code it
// should produce on the wire.
func genericNackCode(err error) byte {
	switch {
	case errors.Is(err, wire.ErrUnknownPayloadType):
		return wire.NackUnknownPayloadType
	case errors.Is(err, wire.ErrPayloadTooLarge):
		return wire.NackInvalidPayloadLength
	default:
		return wire.NackIncorrectPatternFormat
	}
}

func (c *TcpChannel) sendGenericNack(code byte) {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return
	}
	frame := wire.EncodeFrame(wire.ProtocolVersion3, wire.PayloadTypeGenericNack, wire.EncodeGenericNack(wire.GenericNack{Code: code}))
	_ = sock.Write(frame)
}

func (c *TcpChannel) closeSocketLocked() {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	if c.activationState == RASuccessful {
		c.activationState = RAIdle
	}
	c.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

func (c *TcpChannel) postAndWake(ev *inboundEvent) {
	c.mu.Lock()
	c.event = ev
	c.mu.Unlock()
	c.timer.Stop()
}

func (c *TcpChannel) takeEvent() *inboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := c.event
	c.event = nil
	if ev == nil {
		return &inboundEvent{kind: evNone}
	}
	return ev
}

func (c *TcpChannel) setActivationState(s RoutingActivationState) {
	c.mu.Lock()
	c.activationState = s
	c.mu.Unlock()
}

func (c *TcpChannel) setDiagState(s DiagState) {
	c.mu.Lock()
	c.diagState = s
	c.mu.Unlock()
}

// Shutdown forces any in-flight caller to unblock and releases the socket.
func (c *TcpChannel) Shutdown() {
	c.timer.Shutdown()
	c.Disconnect()
}
