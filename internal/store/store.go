package store

import "fmt"

// Config holds the connection parameters for both backing stores. InfluxDB
// is optional: when URL is empty, NewCombinedStore runs SQLite-only.
type Config struct {
	SQLitePath     string
	InfluxDBURL    string
	InfluxDBOrg    string
	InfluxDBToken  string
	InfluxDBBucket string
}

// CombinedStore fans discovery rows and request traces out to SQLite
// (durable local cache) and, when configured, InfluxDB (time-series
// latency history).
type CombinedStore struct {
	sqlite *SQLiteStore
	influx *InfluxStore
}

// NewCombinedStore opens the SQLite store unconditionally and the InfluxDB
// store only when cfg.InfluxDBURL is set.
func NewCombinedStore(cfg Config) (*CombinedStore, error) {
	sqlite, err := NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("store: new combined store: %w", err)
	}

	cs := &CombinedStore{sqlite: sqlite}
	if cfg.InfluxDBURL == "" {
		return cs, nil
	}

	influx, err := NewInfluxStore(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("store: new combined store: %w", err)
	}
	cs.influx = influx
	return cs, nil
}

// UpsertDiscoveredVehicle delegates to the SQLite cache.
func (s *CombinedStore) UpsertDiscoveredVehicle(v DiscoveredVehicle) error {
	return s.sqlite.UpsertDiscoveredVehicle(v)
}

// ListDiscoveredVehicles delegates to the SQLite cache.
func (s *CombinedStore) ListDiscoveredVehicles() ([]DiscoveredVehicle, error) {
	return s.sqlite.ListDiscoveredVehicles()
}

// SaveRequestTrace persists a trace to SQLite and, if configured, mirrors
// its latency into InfluxDB. An InfluxDB write failure is returned as the
// call's error; the SQLite row has already been written by then.
func (s *CombinedStore) SaveRequestTrace(t RequestTrace) error {
	if err := s.sqlite.SaveRequestTrace(t); err != nil {
		return err
	}
	if s.influx != nil {
		return s.influx.WriteRequestTrace(t)
	}
	return nil
}

// RequestTracesForConversation delegates to the SQLite cache.
func (s *CombinedStore) RequestTracesForConversation(name string) ([]RequestTrace, error) {
	return s.sqlite.RequestTracesForConversation(name)
}

// Close releases both backing stores.
func (s *CombinedStore) Close() error {
	if s.influx != nil {
		s.influx.Close()
	}
	return s.sqlite.Close()
}
