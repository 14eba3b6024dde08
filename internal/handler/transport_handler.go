// Package handler implements the thin transport layer that owns TCP and UDP
// channels on behalf of conversations: a handler-ID counter for log
// correlation and narrow capability handles instead of back-references from
// connection to conversation.
package handler

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anodyne74/doip-client/internal/channel"
	"github.com/anodyne74/doip-client/internal/transport"
)

// MessageIndicator is the narrow capability a connection uses to tell its
// owning conversation that it has been disconnected. It replaces a
// back-reference to the conversation object: a connection never holds more
// than this one callback. Diagnostic results are returned directly by
// SendDiagnosticRequest, not through this interface.
type MessageIndicator interface {
	IndicateDisconnect(reason string)
}

// TcpConnection is an owning handle to one TcpChannel plus the handler ID it
// was created under, used for log correlation only.
type TcpConnection struct {
	ID        uint64
	Channel   *channel.TcpChannel
	indicator MessageIndicator
}

// Disconnect tears the channel down and tells the owning conversation.
func (c *TcpConnection) Disconnect(reason string) {
	c.Channel.Disconnect()
	if c.indicator != nil {
		c.indicator.IndicateDisconnect(reason)
	}
}

// SendDiagnosticRequest stamps a UUID correlation ID on the request, logs it
// on the way out and on the way back, and delegates the actual send to the
// underlying channel. The ID exists purely so log lines for the same round
// trip can be joined; it is independent of the handler-ID counter,
// which is bumped once per channel creation rather than once per request.
func (c *TcpConnection) SendDiagnosticRequest(logger transport.Logger, targetAddress uint16, data []byte) (channel.DiagOutcome, []byte, string) {
	correlationID := uuid.NewString()
	if logger != nil {
		logger.Printf("handler[%d]: request %s -> target=0x%04x len=%d", c.ID, correlationID, targetAddress, len(data))
	}
	outcome, response := c.Channel.SendDiagnosticRequest(targetAddress, data)
	if logger != nil {
		logger.Printf("handler[%d]: request %s <- outcome=%d", c.ID, correlationID, outcome.Kind)
	}
	return outcome, response, correlationID
}

// TransportHandler is the client-wide owner of all channels: every
// conversation's TCP connection and the single shared UDP discovery
// channel. It holds no ownership the other direction — conversations hold
// onto the handles this type returns, never the reverse.
type TransportHandler struct {
	nextHandlerID uint64
	logger        transport.Logger
}

// New returns a TransportHandler ready to mint connections.
func New(logger transport.Logger) *TransportHandler {
	return &TransportHandler{logger: logger}
}

// TcpChannelConfig carries the per-conversation tuning a connection's
// channel needs; it is an alias of channel.Config, so either name can be
// used.
type TcpChannelConfig = channel.Config

// FindOrCreateTcpConnection always creates a fresh TcpChannel: connections
// are never shared between conversations, so "find" never has anything to
// find. The handler-ID counter exists purely so distinct conversations'
// log lines can be correlated.
func (h *TransportHandler) FindOrCreateTcpConnection(indicator MessageIndicator, cfg TcpChannelConfig) *TcpConnection {
	id := atomic.AddUint64(&h.nextHandlerID, 1)
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	return &TcpConnection{
		ID:        id,
		Channel:   channel.NewTcpChannel(cfg),
		indicator: indicator,
	}
}

// UdpConnection is an owning handle to the client-wide discovery channel.
type UdpConnection struct {
	ID      uint64
	Channel *channel.UdpChannel
}

// FindOrCreateUdpConnection creates the discovery channel bound to the given
// local/broadcast addresses. Unlike TCP connections, callers are expected to
// share this across the client since discovery has no per-conversation
// identity.
func (h *TransportHandler) FindOrCreateUdpConnection(localIP string, port uint16, broadcastIP string, window time.Duration) (*UdpConnection, error) {
	id := atomic.AddUint64(&h.nextHandlerID, 1)
	ch, err := channel.NewUdpChannel(localIP, port, broadcastIP, window, h.logger)
	if err != nil {
		return nil, err
	}
	return &UdpConnection{ID: id, Channel: ch}, nil
}
