package doipclient

import (
	"strconv"
	"sync"
	"time"

	"github.com/anodyne74/doip-client/internal/channel"
	"github.com/anodyne74/doip-client/internal/config"
	"github.com/anodyne74/doip-client/internal/handler"
	"github.com/anodyne74/doip-client/internal/metrics"
	"github.com/anodyne74/doip-client/internal/monitor"
	"github.com/anodyne74/doip-client/internal/registry"
	"github.com/anodyne74/doip-client/internal/store"
	"github.com/anodyne74/doip-client/internal/transport"
	"github.com/anodyne74/doip-client/internal/wire"
	"github.com/anodyne74/doip-client/trace"
	"github.com/anodyne74/doip-client/traceanalysis"
)

// Conversation is one named diagnostic session: its own TCP connection, its
// own activation state, sharing nothing at runtime with any other
// conversation except the client-wide transport handler's ID counter.
type Conversation struct {
	name   string
	cfg    config.ConversationConfig
	th     *handler.TransportHandler
	logger transport.Logger

	registry *registry.Manager
	metrics  *metrics.Collectors
	recorder *trace.Recorder
	store    *store.CombinedStore
	monitor  *monitor.Server

	mu              sync.Mutex
	started         bool
	conn            *handler.TcpConnection
	active          bool
	targetAddress   uint16
	requestInFlight bool
}

func newConversation(name string, cfg config.ConversationConfig, th *handler.TransportHandler, logger transport.Logger, reg *registry.Manager, m *metrics.Collectors, rec *trace.Recorder, st *store.CombinedStore, mon *monitor.Server) *Conversation {
	return &Conversation{name: name, cfg: cfg, th: th, logger: logger, registry: reg, metrics: m, recorder: rec, store: st, monitor: mon}
}

// Name reports the conversation's configured name.
func (c *Conversation) Name() string { return c.name }

// Startup is idempotent lifecycle setup; it does nothing beyond marking the
// conversation ready, since the TCP channel itself is created lazily by
// ConnectToDiagServer.
func (c *Conversation) Startup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// Shutdown is idempotent; calling it after Disconnect, or more than once, is
// a no-op. It does not check for an in-flight request the way
// DisconnectFromDiagServer does, since a caller tearing the whole
// conversation down has no outstanding response it still wants delivered.
func (c *Conversation) Shutdown() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	conn := c.conn
	c.conn = nil
	c.active = false
	c.mu.Unlock()
	if conn != nil {
		conn.Disconnect("shutdown")
	}
}

// IndicateDisconnect implements handler.MessageIndicator: the connection
// calls this from TcpConnection.Disconnect. A channel that closes its own
// socket after a socket or decode error does not call it.
func (c *Conversation) IndicateDisconnect(reason string) {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	c.logger.Printf("conversation[%s]: disconnected: %s", c.name, reason)
}

// ConnectToDiagServer opens the TCP channel to hostIP:RemoteTCPPort and
// performs routing activation targeting targetAddress, the ECU logical
// address this conversation will send diagnostic requests to by default.
func (c *Conversation) ConnectToDiagServer(targetAddress uint16, hostIP string) ConnectResult {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ConnectResult{Kind: ConnectNoTransport}
	}
	if c.conn != nil && c.active {
		c.mu.Unlock()
		return ConnectResult{Kind: ConnectAlreadyConnected}
	}
	c.mu.Unlock()

	chCfg := channel.Config{
		ClientAddress:      c.cfg.SourceAddress,
		RxBufferSize:       c.cfg.RxBufferSize,
		P2ClientMax:        c.cfg.P2ClientMax,
		P2StarClientMax:    c.cfg.P2StarClientMax,
		MaxResponsePending: c.cfg.MaxResponsePending,
		Logger:             c.logger,
		Trace:              c.traceFrame,
	}
	conn := c.th.FindOrCreateTcpConnection(c, chCfg)

	host := hostIP
	if host == "" {
		host = c.cfg.RemoteTCPAddress
	}
	outcome := conn.Channel.ConnectToHost(host, c.cfg.RemoteTCPPort)

	if c.metrics != nil {
		label := "failed"
		if outcome.Kind == channel.ConnectOk {
			label = "ok"
		}
		c.metrics.RoutingActivationTotal.WithLabelValues(c.name, label).Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch outcome.Kind {
	case channel.ConnectOk:
		c.conn = conn
		c.active = true
		c.targetAddress = targetAddress
		if c.registry != nil {
			c.registry.RegisterECU(c.name, targetAddress)
		}
		return ConnectResult{Kind: ConnectOk}
	case channel.ConnectActivationFailed:
		return ConnectResult{Kind: ConnectFailed, ActivationCode: outcome.Code}
	default:
		return ConnectResult{Kind: ConnectFailed, Err: outcome.Err}
	}
}

// DisconnectFromDiagServer tears the channel down. It is NotConnected when no
// channel is currently open, and Failed when a diagnostic request is
// currently in flight — the caller must let it finish or time out first, per
// the concurrency model's Shutdown-while-in-flight rule.
func (c *Conversation) DisconnectFromDiagServer() DisconnectResult {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return DisconnectResult{Kind: DisconnectNotConnected}
	}
	if c.requestInFlight {
		c.mu.Unlock()
		return DisconnectResult{Kind: DisconnectFailed}
	}
	c.mu.Unlock()

	conn.Disconnect("caller requested disconnect")

	c.mu.Lock()
	c.conn = nil
	c.active = false
	c.mu.Unlock()
	return DisconnectResult{Kind: DisconnectOk}
}

// SendDiagnosticRequest sends msg and blocks until a final response, a
// negative ack, or a timeout resolves it. When msg.TargetAddress is zero, the
// address passed to ConnectToDiagServer is used.
func (c *Conversation) SendDiagnosticRequest(msg UdsMessage) DiagResponse {
	c.mu.Lock()
	if !c.active || c.conn == nil {
		c.mu.Unlock()
		return DiagResponse{Kind: DiagNotActivated}
	}
	conn := c.conn
	target := msg.TargetAddress
	if target == 0 {
		target = c.targetAddress
	}
	c.requestInFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.requestInFlight = false
		c.mu.Unlock()
	}()

	if c.metrics != nil {
		c.metrics.InFlightRequests.WithLabelValues(c.name).Inc()
		defer c.metrics.InFlightRequests.WithLabelValues(c.name).Dec()
	}
	start := time.Now()

	outcome, payload, correlationID := conn.SendDiagnosticRequest(c.logger, target, msg.Data)
	elapsed := time.Since(start)

	if c.store != nil {
		sid := byte(0)
		if len(msg.Data) > 0 {
			sid = msg.Data[0]
		}
		if err := c.store.SaveRequestTrace(store.RequestTrace{
			ConversationName: c.name,
			TargetAddress:    target,
			RequestSID:       sid,
			Outcome:          diagOutcomeLabel(outcome.Kind),
			Duration:         elapsed,
			Timestamp:        start,
		}); err != nil {
			c.logger.Printf("conversation[%s]: save request trace: %v", c.name, err)
		}
	}

	if c.metrics != nil {
		elapsed := elapsed.Seconds()
		c.metrics.RequestDuration.WithLabelValues(c.name, diagOutcomeLabel(outcome.Kind)).Observe(elapsed)
		switch outcome.Kind {
		case channel.DiagAckTimeout:
			c.metrics.AckTimeoutTotal.WithLabelValues(c.name).Inc()
		case channel.DiagResponseTimeout:
			c.metrics.ResponseTimeoutTotal.WithLabelValues(c.name).Inc()
		case channel.DiagNegativeAck:
			c.metrics.NegativeAckTotal.WithLabelValues(c.name, strconv.Itoa(int(outcome.NackCode))).Inc()
		}
	}

	if c.registry != nil {
		switch outcome.Kind {
		case channel.DiagAckTimeout, channel.DiagResponseTimeout:
			c.registry.RecordTimeout(target)
		case channel.DiagOk:
			c.registry.RecordSuccess(target)
		case channel.DiagNegativeAck:
			c.registry.RecordNegativeAck(target)
		}
	}
	if outcome.Kind == channel.DiagSocketError || outcome.Kind == channel.DiagTransmitFailed {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}

	if c.monitor != nil {
		c.monitor.Broadcast(monitor.Event{
			Timestamp:        start,
			ConversationName: c.name,
			Kind:             "diagnostic_request",
			Detail:           diagOutcomeLabel(outcome.Kind),
		})
	}

	return DiagResponse{
		Kind:          mapDiagKind(outcome.Kind),
		Payload:       payload,
		NackCode:      outcome.NackCode,
		CorrelationID: correlationID,
		Err:           outcome.Err,
	}
}

func diagOutcomeLabel(k channel.DiagKind) string {
	switch k {
	case channel.DiagOk:
		return "ok"
	case channel.DiagNegativeAck:
		return "negative_ack"
	case channel.DiagAckTimeout:
		return "ack_timeout"
	case channel.DiagResponseTimeout:
		return "response_timeout"
	default:
		return "error"
	}
}

func mapDiagKind(k channel.DiagKind) DiagKind {
	switch k {
	case channel.DiagOk:
		return DiagOk
	case channel.DiagNotActivated, channel.DiagBusy:
		return DiagNotActivated
	case channel.DiagInvalidParameter:
		return DiagInvalidParameter
	case channel.DiagTransmitFailed:
		return DiagTransmitFailed
	case channel.DiagAckTimeout:
		return DiagAckTimeout
	case channel.DiagNegativeAck:
		return DiagNegativeAck
	case channel.DiagResponseTimeout:
		return DiagResponseTimeout
	default:
		return DiagSocketError
	}
}

// traceFrame adapts internal/channel.TraceFunc to a trace.Frame, feeds the
// conversation's recorder (if one is active), and updates the
// response-pending counter, the one Prometheus signal only visible at wire
// granularity rather than in the final SendDiagnosticRequest outcome.
func (c *Conversation) traceFrame(direction string, h wire.Header, payload []byte) {
	name, decoded := decodeForTrace(h.PayloadType, payload)
	if pending, ok := decoded["response_pending"].(bool); ok && pending {
		if c.metrics != nil {
			c.metrics.ResponsePendingTotal.WithLabelValues(c.name).Inc()
		}
		if c.registry != nil {
			c.registry.RecordResponsePending(c.targetAddress)
		}
	}
	if c.recorder == nil {
		return
	}
	c.recorder.Record(trace.Frame{
		Timestamp:        time.Now(),
		Direction:        direction,
		ConversationName: c.name,
		PayloadType:      uint16(h.PayloadType),
		PayloadTypeName:  name,
		Raw:              append([]byte(nil), payload...),
		Decoded:          decoded,
	})
}

func decodeForTrace(pt wire.PayloadType, payload []byte) (string, map[string]interface{}) {
	switch pt {
	case wire.PayloadTypeRoutingActivationReq:
		return traceanalysis.FrameRoutingActivationReq, nil
	case wire.PayloadTypeRoutingActivationRes:
		res, err := wire.DecodeRoutingActivationResponse(payload)
		if err != nil {
			return traceanalysis.FrameRoutingActivationRes, nil
		}
		return traceanalysis.FrameRoutingActivationRes, map[string]interface{}{"success": res.Code.Success()}
	case wire.PayloadTypeDiagMessage:
		if wire.IsResponsePending(payload) {
			return traceanalysis.FrameDiagMessage, map[string]interface{}{"response_pending": true}
		}
		return traceanalysis.FrameDiagMessage, nil
	case wire.PayloadTypeDiagMessagePosAck:
		return traceanalysis.FrameDiagMessagePosAck, nil
	case wire.PayloadTypeDiagMessageNegAck:
		ack, err := wire.DecodeDiagAck(payload)
		if err != nil {
			return traceanalysis.FrameDiagMessageNegAck, nil
		}
		return traceanalysis.FrameDiagMessageNegAck, map[string]interface{}{"nack_code": float64(ack.AckCode)}
	default:
		return "Unknown", nil
	}
}
