package channel

import "github.com/anodyne74/doip-client/internal/wire"

// ConnectKind tags the result of a TCP channel's ConnectToHost attempt.
type ConnectKind uint8

const (
	ConnectOk ConnectKind = iota
	ConnectConnectionFailed
	ConnectActivationFailed
	ConnectActivationTimeout
)

// ConnectOutcome is the tagged result of ConnectToHost: Code is populated
// only for ConnectActivationFailed, Err only for ConnectConnectionFailed.
type ConnectOutcome struct {
	Kind ConnectKind
	Code wire.RoutingActivationCode
	Err  error
}

// DiagKind tags the result of SendDiagnosticRequest, mirroring the closed
// DiagResult taxonomy plus one implementation-level safety variant (Busy)
// for the exclusivity invariant.
type DiagKind uint8

const (
	DiagOk DiagKind = iota
	DiagNotActivated
	DiagInvalidParameter
	DiagTransmitFailed
	DiagAckTimeout
	DiagNegativeAck
	DiagResponseTimeout
	DiagSocketError
	// DiagBusy is returned when a second request arrives while one is
	// already in flight on this channel; it never touches the network.
	DiagBusy
)

// DiagOutcome is the tagged result of SendDiagnosticRequest. NackCode is
// populated only for DiagNegativeAck.
type DiagOutcome struct {
	Kind     DiagKind
	NackCode byte
	Err      error
}
