package store

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxStore writes per-request latency points to InfluxDB, one point per
// completed SendDiagnosticRequest, so operators can graph P2/P2* behavior
// over time alongside the rest of a fleet's telemetry.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxStore connects to an InfluxDB instance and verifies it is
// reachable before returning.
func NewInfluxStore(url, token, org, bucket string) (*InfluxStore, error) {
	client := influxdb2.NewClient(url, token)
	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: ping influxdb: %w", err)
	}
	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// WriteRequestTrace records one request's timing as an influx point tagged
// by conversation and outcome; the target logical address is a field.
func (s *InfluxStore) WriteRequestTrace(t RequestTrace) error {
	point := influxdb2.NewPoint(
		"diagnostic_request",
		map[string]string{
			"conversation": t.ConversationName,
			"outcome":      t.Outcome,
		},
		map[string]interface{}{
			"target_address":   t.TargetAddress,
			"request_sid":      t.RequestSID,
			"response_pending": t.ResponsePending,
			"duration_ms":      t.Duration.Milliseconds(),
		},
		t.Timestamp,
	)
	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		return fmt.Errorf("store: write request trace point: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxStore) Close() { s.client.Close() }
