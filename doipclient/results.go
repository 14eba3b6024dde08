// Package doipclient is the public façade over the DoIP/UDS diagnostic
// client core: a Client factory built from a JSON configuration file, named
// Conversations opened against it, and the tagged result types every
// fallible operation returns instead of an error.
package doipclient

import "github.com/anodyne74/doip-client/internal/wire"

// ConnectKind tags the result of Conversation.ConnectToDiagServer.
type ConnectKind uint8

const (
	ConnectOk ConnectKind = iota
	ConnectNoTransport
	ConnectAlreadyConnected
	ConnectFailed
)

func (k ConnectKind) String() string {
	switch k {
	case ConnectOk:
		return "Ok"
	case ConnectNoTransport:
		return "NoTransport"
	case ConnectAlreadyConnected:
		return "AlreadyConnected"
	default:
		return "Failed"
	}
}

// ConnectResult is the tagged result of ConnectToDiagServer. ActivationCode
// is populated only when the underlying channel reports a routing-activation
// rejection reason.
type ConnectResult struct {
	Kind           ConnectKind
	ActivationCode wire.RoutingActivationCode
	Err            error
}

// DisconnectKind tags the result of Conversation.DisconnectFromDiagServer.
type DisconnectKind uint8

const (
	DisconnectOk DisconnectKind = iota
	DisconnectNotConnected
	DisconnectFailed
)

func (k DisconnectKind) String() string {
	switch k {
	case DisconnectOk:
		return "Ok"
	case DisconnectNotConnected:
		return "NotConnected"
	default:
		return "Failed"
	}
}

// DisconnectResult is the tagged result of DisconnectFromDiagServer.
type DisconnectResult struct {
	Kind DisconnectKind
	Err  error
}

// DiagKind tags the result of Conversation.SendDiagnosticRequest, mirroring
// spec.md §7's closed error taxonomy one-for-one.
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
)

func (k DiagKind) String() string {
	switch k {
	case DiagOk:
		return "Ok"
	case DiagNotActivated:
		return "NotActivated"
	case DiagInvalidParameter:
		return "InvalidParameter"
	case DiagTransmitFailed:
		return "TransmitFailed"
	case DiagAckTimeout:
		return "AckTimeout"
	case DiagNegativeAck:
		return "NegativeAck"
	case DiagResponseTimeout:
		return "ResponseTimeout"
	default:
		return "SocketError"
	}
}

// UdsMessage is a UDS request destined for a specific ECU logical address.
type UdsMessage struct {
	TargetAddress uint16
	Data          []byte
}

// DiagResponse is the result of a SendDiagnosticRequest call: Payload is
// populated only for DiagOk; NackCode only for DiagNegativeAck.
// CorrelationID is set for every request that reached the connection, and
// is empty when the conversation was not activated.
type DiagResponse struct {
	Kind          DiagKind
	Payload       []byte
	NackCode      byte
	CorrelationID string
	Err           error
}

// VehicleAnnouncement is the public, flattened form of a discovered DoIP
// server: the wire announcement plus the source IP it arrived from.
type VehicleAnnouncement struct {
	SourceIP       string
	VIN            string
	LogicalAddress uint16
	EID            [6]byte
	GID            [6]byte
	FurtherAction  byte
}

// Preselection mirrors internal/channel's discovery preselection modes.
type Preselection uint8

const (
	PreselectionNone Preselection = iota
	PreselectionVIN
	PreselectionEID
)
