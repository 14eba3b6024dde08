package traceanalysis

import (
	"time"

	"github.com/anodyne74/doip-client/trace"
)

// Payload type names as recorded into trace.Frame.PayloadTypeName by the
// doipclient package; kept here as the contract between recorder and
// analyzer so both sides name frames the same way.
const (
	FrameRoutingActivationReq = "RoutingActivationReq"
	FrameRoutingActivationRes = "RoutingActivationRes"
	FrameDiagMessage          = "DiagMessage"
	FrameDiagMessagePosAck    = "DiagMessagePosAck"
	FrameDiagMessageNegAck    = "DiagMessageNegAck"
)

// Analyzer computes an Analysis from a captured trace.Session.
type Analyzer struct {
	session *trace.Session

	analysis          *Analysis
	ackLatencies      []time.Duration
	responseLatencies []time.Duration
}

// NewAnalyzer wraps a session for analysis.
func NewAnalyzer(session *trace.Session) *Analyzer {
	return &Analyzer{session: session, analysis: &Analysis{}}
}

type inflightRequest struct {
	sentAt      time.Time
	ackReceived bool
}

// Analyze walks every frame once, pairing each outbound request with the
// ack/response frames that follow it on the same conversation, the way a log
// reader pairs a request with the next reply that belongs to it.
func (a *Analyzer) Analyze() *Analysis {
	a.analysis.SessionInfo.StartTime = a.session.StartTime
	a.analysis.SessionInfo.EndTime = a.session.EndTime
	a.analysis.SessionInfo.Duration = a.session.EndTime.Sub(a.session.StartTime)
	a.analysis.SessionInfo.TotalFrames = len(a.session.Frames)
	a.analysis.Diagnostics.NegativeAckCodes = make(map[byte]int)

	inflight := make(map[string]*inflightRequest)

	for _, f := range a.session.Frames {
		switch f.PayloadTypeName {
		case FrameRoutingActivationReq:
			if f.Direction == "tx" {
				a.analysis.RoutingActivation.Attempts++
			}

		case FrameRoutingActivationRes:
			if f.Direction != "rx" {
				continue
			}
			if success, _ := f.Decoded["success"].(bool); success {
				a.analysis.RoutingActivation.Successes++
			} else {
				a.analysis.RoutingActivation.Failures++
			}

		case FrameDiagMessage:
			if f.Direction == "tx" {
				a.analysis.Diagnostics.RequestCount++
				inflight[f.ConversationName] = &inflightRequest{sentAt: f.Timestamp}
				continue
			}
			if pending, _ := f.Decoded["response_pending"].(bool); pending {
				a.analysis.Diagnostics.ResponsePendingCount++
				continue
			}
			if req := inflight[f.ConversationName]; req != nil {
				a.responseLatencies = append(a.responseLatencies, f.Timestamp.Sub(req.sentAt))
				delete(inflight, f.ConversationName)
			}

		case FrameDiagMessagePosAck:
			if f.Direction != "rx" {
				continue
			}
			if req := inflight[f.ConversationName]; req != nil && !req.ackReceived {
				req.ackReceived = true
				a.ackLatencies = append(a.ackLatencies, f.Timestamp.Sub(req.sentAt))
			}

		case FrameDiagMessageNegAck:
			if f.Direction != "rx" {
				continue
			}
			a.analysis.Diagnostics.NegativeAckCount++
			if code, ok := f.Decoded["nack_code"].(float64); ok {
				a.analysis.Diagnostics.NegativeAckCodes[byte(code)]++
			}
			delete(inflight, f.ConversationName)
		}
	}

	a.analysis.Timing.AckLatency = CalculateStats(a.ackLatencies)
	a.analysis.Timing.ResponseLatency = CalculateStats(a.responseLatencies)
	return a.analysis
}
