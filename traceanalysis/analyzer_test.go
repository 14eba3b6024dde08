package traceanalysis

import (
	"testing"
	"time"

	"github.com/anodyne74/doip-client/trace"
)

func TestAnalyzeComputesLatenciesAndCounts(t *testing.T) {
	base := time.Now()
	session := &trace.Session{
		StartTime: base,
		EndTime:   base.Add(500 * time.Millisecond),
		Frames: []trace.Frame{
			{Timestamp: base, Direction: "tx", ConversationName: "ECU1", PayloadTypeName: FrameRoutingActivationReq},
			{Timestamp: base.Add(10 * time.Millisecond), Direction: "rx", ConversationName: "ECU1", PayloadTypeName: FrameRoutingActivationRes, Decoded: map[string]interface{}{"success": true}},
			{Timestamp: base.Add(20 * time.Millisecond), Direction: "tx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessage},
			{Timestamp: base.Add(30 * time.Millisecond), Direction: "rx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessagePosAck},
			{Timestamp: base.Add(40 * time.Millisecond), Direction: "rx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessage, Decoded: map[string]interface{}{"response_pending": true}},
			{Timestamp: base.Add(80 * time.Millisecond), Direction: "rx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessage},
		},
	}

	analysis := NewAnalyzer(session).Analyze()

	if analysis.RoutingActivation.Attempts != 1 || analysis.RoutingActivation.Successes != 1 {
		t.Errorf("routing activation = %+v", analysis.RoutingActivation)
	}
	if analysis.Diagnostics.RequestCount != 1 {
		t.Errorf("request count = %d, want 1", analysis.Diagnostics.RequestCount)
	}
	if analysis.Diagnostics.ResponsePendingCount != 1 {
		t.Errorf("response pending count = %d, want 1", analysis.Diagnostics.ResponsePendingCount)
	}
	if analysis.Timing.AckLatency.Samples != 1 || analysis.Timing.AckLatency.Mean != 10*time.Millisecond {
		t.Errorf("ack latency = %+v", analysis.Timing.AckLatency)
	}
	if analysis.Timing.ResponseLatency.Samples != 1 || analysis.Timing.ResponseLatency.Mean != 60*time.Millisecond {
		t.Errorf("response latency = %+v", analysis.Timing.ResponseLatency)
	}
}

func TestAnalyzeCountsNegativeAck(t *testing.T) {
	base := time.Now()
	session := &trace.Session{
		StartTime: base,
		EndTime:   base.Add(time.Second),
		Frames: []trace.Frame{
			{Timestamp: base, Direction: "tx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessage},
			{Timestamp: base.Add(5 * time.Millisecond), Direction: "rx", ConversationName: "ECU1", PayloadTypeName: FrameDiagMessageNegAck, Decoded: map[string]interface{}{"nack_code": float64(0x31)}},
		},
	}

	analysis := NewAnalyzer(session).Analyze()
	if analysis.Diagnostics.NegativeAckCount != 1 {
		t.Errorf("negative ack count = %d, want 1", analysis.Diagnostics.NegativeAckCount)
	}
	if analysis.Diagnostics.NegativeAckCodes[0x31] != 1 {
		t.Errorf("negative ack codes = %+v", analysis.Diagnostics.NegativeAckCodes)
	}
}

func TestCalculateStatsEmpty(t *testing.T) {
	s := CalculateStats(nil)
	if s.Samples != 0 {
		t.Errorf("expected zero Stats for empty input, got %+v", s)
	}
}
