// Package traceanalysis computes timing and outcome statistics over a
// trace.Session: ack/response latency distributions, routing-activation
// success rates, and negative-ack frequency, the way a bench technician
// would summarize a logged run after the fact.
package traceanalysis

import (
	"math"
	"sort"
	"time"
)

// Stats summarizes a set of latency samples.
type Stats struct {
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Mean    time.Duration `json:"mean"`
	Median  time.Duration `json:"median"`
	StdDev  time.Duration `json:"std_dev"`
	Samples int           `json:"samples"`
}

// CalculateStats reduces a slice of latency samples into a Stats summary. An
// empty input returns a zero Stats rather than an error: "no samples" is a
// legitimate, common analysis outcome, not a failure.
func CalculateStats(samples []time.Duration) Stats {
	if len(samples) == 0 {
		return Stats{}
	}

	values := make([]float64, len(samples))
	min, max := samples[0], samples[0]
	var sum float64
	for i, d := range samples {
		values[i] = float64(d)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += float64(d)
	}
	mean := sum / float64(len(values))

	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	var stdDev float64
	if len(values) > 1 {
		stdDev = math.Sqrt(sumSquares / float64(len(values)-1))
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var median float64
	if n := len(sorted); n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[len(sorted)/2]
	}

	return Stats{
		Min:     min,
		Max:     max,
		Mean:    time.Duration(mean),
		Median:  time.Duration(median),
		StdDev:  time.Duration(stdDev),
		Samples: len(values),
	}
}

// Analysis is the complete summary produced by Analyzer.Analyze.
type Analysis struct {
	SessionInfo struct {
		StartTime   time.Time     `json:"start_time"`
		EndTime     time.Time     `json:"end_time"`
		Duration    time.Duration `json:"duration"`
		TotalFrames int           `json:"total_frames"`
	} `json:"session_info"`

	Timing struct {
		AckLatency      Stats `json:"ack_latency"`
		ResponseLatency Stats `json:"response_latency"`
	} `json:"timing"`

	RoutingActivation struct {
		Attempts  int `json:"attempts"`
		Successes int `json:"successes"`
		Failures  int `json:"failures"`
	} `json:"routing_activation"`

	Diagnostics struct {
		RequestCount         int           `json:"request_count"`
		ResponsePendingCount int           `json:"response_pending_count"`
		NegativeAckCount     int           `json:"negative_ack_count"`
		NegativeAckCodes     map[byte]int  `json:"negative_ack_codes"`
	} `json:"diagnostics"`
}
