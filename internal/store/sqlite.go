// Package store persists discovery results and diagnostic-request timing
// for later inspection: a SQLite cache for discovered vehicles and
// completed request traces, and an optional InfluxDB sink for per-request
// latency time series.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// RequestTrace records one completed SendDiagnosticRequest, win or loss, for
// persistence and later analysis.
type RequestTrace struct {
	ConversationName string
	TargetAddress    uint16
	RequestSID       byte
	Outcome          string
	ResponsePending  int
	Duration         time.Duration
	Timestamp        time.Time
}

// DiscoveredVehicle is one cached row from a UDP discovery response.
type DiscoveredVehicle struct {
	SourceIP       string
	VIN            string
	LogicalAddress uint16
	FirstSeen      time.Time
	LastSeen       time.Time
}

// SQLiteStore persists discovery and request-trace history across client
// runs. Tables are created with "CREATE TABLE IF NOT EXISTS" when the store
// is opened.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS discovered_vehicles (
			source_ip TEXT NOT NULL,
			vin TEXT NOT NULL,
			logical_address INTEGER NOT NULL,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL,
			PRIMARY KEY (source_ip, logical_address)
		)`,
		`CREATE TABLE IF NOT EXISTS request_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_name TEXT NOT NULL,
			target_address INTEGER NOT NULL,
			request_sid INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			response_pending INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_traces_conversation
			ON request_traces(conversation_name, timestamp)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}
	return nil
}

// UpsertDiscoveredVehicle inserts or refreshes the last-seen timestamp for a
// discovered vehicle, keyed by (source IP, logical address).
func (s *SQLiteStore) UpsertDiscoveredVehicle(v DiscoveredVehicle) error {
	_, err := s.db.Exec(`
		INSERT INTO discovered_vehicles (source_ip, vin, logical_address, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_ip, logical_address) DO UPDATE SET last_seen = excluded.last_seen`,
		v.SourceIP, v.VIN, v.LogicalAddress, v.FirstSeen, v.LastSeen)
	if err != nil {
		return fmt.Errorf("store: upsert discovered vehicle: %w", err)
	}
	return nil
}

// ListDiscoveredVehicles returns every cached discovery row.
func (s *SQLiteStore) ListDiscoveredVehicles() ([]DiscoveredVehicle, error) {
	rows, err := s.db.Query(`SELECT source_ip, vin, logical_address, first_seen, last_seen FROM discovered_vehicles`)
	if err != nil {
		return nil, fmt.Errorf("store: list discovered vehicles: %w", err)
	}
	defer rows.Close()

	var out []DiscoveredVehicle
	for rows.Next() {
		var v DiscoveredVehicle
		if err := rows.Scan(&v.SourceIP, &v.VIN, &v.LogicalAddress, &v.FirstSeen, &v.LastSeen); err != nil {
			return nil, fmt.Errorf("store: scan discovered vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveRequestTrace persists one completed request's timing and outcome.
func (s *SQLiteStore) SaveRequestTrace(t RequestTrace) error {
	_, err := s.db.Exec(`
		INSERT INTO request_traces (
			conversation_name, target_address, request_sid, outcome, response_pending, duration_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ConversationName, t.TargetAddress, t.RequestSID, t.Outcome,
		t.ResponsePending, t.Duration.Milliseconds(), t.Timestamp)
	if err != nil {
		return fmt.Errorf("store: save request trace: %w", err)
	}
	return nil
}

// RequestTracesForConversation returns every trace recorded for name, most
// recent first.
func (s *SQLiteStore) RequestTracesForConversation(name string) ([]RequestTrace, error) {
	rows, err := s.db.Query(`
		SELECT conversation_name, target_address, request_sid, outcome, response_pending, duration_ms, timestamp
		FROM request_traces WHERE conversation_name = ? ORDER BY timestamp DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("store: query request traces: %w", err)
	}
	defer rows.Close()

	var out []RequestTrace
	for rows.Next() {
		var t RequestTrace
		var durationMs int64
		if err := rows.Scan(&t.ConversationName, &t.TargetAddress, &t.RequestSID, &t.Outcome, &t.ResponsePending, &durationMs, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan request trace: %w", err)
		}
		t.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
