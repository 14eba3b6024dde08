// Package channel implements the per-conversation TCP channel (routing
// activation + diagnostic messaging sub-state machines) and the client-wide
// UDP discovery channel. States are plain tagged values rather than vtable
// objects: a channel holds two small enums and switches on them, which
// avoids a family of empty Start/Stop/HandleMessage stubs.
package channel

// RoutingActivationState is the outer sub-state machine tracking the DoIP
// routing-activation handshake for one TCP channel.
type RoutingActivationState uint8

const (
	RAIdle RoutingActivationState = iota
	RAWaitForRoutingActivationRes
	RASuccessful
	RAFailed
)

func (s RoutingActivationState) String() string {
	switch s {
	case RAWaitForRoutingActivationRes:
		return "WaitForRoutingActivationRes"
	case RASuccessful:
		return "RoutingActivationSuccessful"
	case RAFailed:
		return "RoutingActivationFailed"
	default:
		return "Idle"
	}
}

// DiagState is the inner sub-state machine tracking one outstanding UDS
// request on an activated TCP channel.
type DiagState uint8

const (
	DiagIdle DiagState = iota
	DiagWaitForAck
	DiagPositiveAckRecvd
	DiagNegativeAckRecvd
	DiagWaitForResponse
	DiagSendReqFailed
)

func (s DiagState) String() string {
	switch s {
	case DiagWaitForAck:
		return "WaitForDiagnosticAck"
	case DiagPositiveAckRecvd:
		return "DiagnosticPositiveAckRecvd"
	case DiagNegativeAckRecvd:
		return "DiagnosticNegativeAckRecvd"
	case DiagWaitForResponse:
		return "WaitForDiagnosticResponse"
	case DiagSendReqFailed:
		return "SendDiagnosticReqFailed"
	default:
		return "Idle"
	}
}
