// Command analyze loads a recorded trace session and prints summary
// statistics: routing-activation success rate, ack/response latency, and
// negative-ack frequency by code.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/anodyne74/doip-client/trace"
	"github.com/anodyne74/doip-client/traceanalysis"
)

func main() {
	path := flag.String("session", "", "path to a trace session JSON file")
	asJSON := flag.Bool("json", false, "print the analysis as JSON instead of a text summary")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -session <path>")
		os.Exit(2)
	}

	session, err := trace.LoadSession(*path)
	if err != nil {
		log.Fatalf("analyze: load session: %v", err)
	}

	analysis := traceanalysis.NewAnalyzer(session).Analyze()

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			log.Fatalf("analyze: encode: %v", err)
		}
		return
	}

	fmt.Printf("session: %s -> %s (%d frames)\n", analysis.SessionInfo.StartTime.Format("15:04:05"), analysis.SessionInfo.EndTime.Format("15:04:05"), analysis.SessionInfo.TotalFrames)
	fmt.Printf("routing activation: %d attempts, %d successes, %d failures\n", analysis.RoutingActivation.Attempts, analysis.RoutingActivation.Successes, analysis.RoutingActivation.Failures)
	fmt.Printf("diagnostics: %d requests, %d response-pending, %d negative acks\n", analysis.Diagnostics.RequestCount, analysis.Diagnostics.ResponsePendingCount, analysis.Diagnostics.NegativeAckCount)
	for code, count := range analysis.Diagnostics.NegativeAckCodes {
		fmt.Printf("  nack 0x%02x: %d\n", code, count)
	}
	fmt.Printf("ack latency:      mean=%s min=%s max=%s (n=%d)\n", analysis.Timing.AckLatency.Mean, analysis.Timing.AckLatency.Min, analysis.Timing.AckLatency.Max, analysis.Timing.AckLatency.Samples)
	fmt.Printf("response latency: mean=%s min=%s max=%s (n=%d)\n", analysis.Timing.ResponseLatency.Mean, analysis.Timing.ResponseLatency.Min, analysis.Timing.ResponseLatency.Max, analysis.Timing.ResponseLatency.Samples)
}
