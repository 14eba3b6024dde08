// Package registry tracks per-ECU health across diagnostic requests: ack
// and response timeout streaks, response-pending extension and negative-ack
// counts, and the alert raised when a timeout streak reaches the Manager's
// configured threshold. It plays the role the teacher's vehicle manager plays for OBD
// telemetry, retargeted at DoIP logical addresses instead of VINs.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownECU is returned when a lookup or update targets a logical
// address the registry has never seen RegisterECU for.
var ErrUnknownECU = errors.New("registry: unknown ECU logical address")

// ECURecord tracks one server logical address's diagnostic health across a
// conversation's lifetime.
type ECURecord struct {
	LogicalAddress      uint16
	ConversationName    string
	LastSeen            time.Time
	ConsecutiveTimeouts int
	ResponsePendingSeen int
	NegativeAcks        int
	LastAlert           *Alert
}

// Alert describes one anomaly condition raised against an ECURecord.
type Alert struct {
	LogicalAddress uint16
	Severity       string // "warning", "critical"
	Message        string
	Timestamp      time.Time
}

// Manager owns the set of known ECU records for one client, keyed by
// logical address. It is safe for concurrent use across conversations.
type Manager struct {
	mu                    sync.RWMutex
	records               map[uint16]*ECURecord
	timeoutAlertThreshold int
}

// NewManager returns a Manager that raises a warning alert once an ECU's
// consecutive ack/response timeout count reaches timeoutAlertThreshold (0
// disables timeout-based alerting).
func NewManager(timeoutAlertThreshold int) *Manager {
	return &Manager{
		records:               make(map[uint16]*ECURecord),
		timeoutAlertThreshold: timeoutAlertThreshold,
	}
}

// RegisterECU adds (or resets) tracking for a logical address within a
// conversation. Calling it again for an address already tracked clears its
// counters, since a fresh ConnectToDiagServer starts a clean health record.
func (m *Manager) RegisterECU(conversationName string, logicalAddress uint16) *ECURecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &ECURecord{
		LogicalAddress:   logicalAddress,
		ConversationName: conversationName,
		LastSeen:         time.Now(),
	}
	m.records[logicalAddress] = rec
	return rec
}

// GetECU retrieves a tracked record.
func (m *Manager) GetECU(logicalAddress uint16) (*ECURecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[logicalAddress]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownECU, "0x%04x", logicalAddress)
	}
	return rec, nil
}

// RecordTimeout increments the consecutive-timeout counter for
// logicalAddress and returns an Alert if that crosses the configured
// threshold; it returns nil otherwise.
func (m *Manager) RecordTimeout(logicalAddress uint16) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[logicalAddress]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownECU, "0x%04x", logicalAddress)
	}
	rec.ConsecutiveTimeouts++
	rec.LastSeen = time.Now()
	if m.timeoutAlertThreshold > 0 && rec.ConsecutiveTimeouts == m.timeoutAlertThreshold {
		alert := &Alert{
			LogicalAddress: logicalAddress,
			Severity:       "warning",
			Message:        fmt.Sprintf("ECU 0x%04x has timed out %d consecutive times", logicalAddress, rec.ConsecutiveTimeouts),
			Timestamp:      rec.LastSeen,
		}
		rec.LastAlert = alert
		return alert, nil
	}
	return nil, nil
}

// RecordSuccess resets the consecutive-timeout counter after a successful
// exchange with logicalAddress.
func (m *Manager) RecordSuccess(logicalAddress uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[logicalAddress]
	if !ok {
		return errors.Wrapf(ErrUnknownECU, "0x%04x", logicalAddress)
	}
	rec.ConsecutiveTimeouts = 0
	rec.LastSeen = time.Now()
	return nil
}

// RecordResponsePending increments the response-pending extension count,
// for health reporting; ISO 14229 recommends capping this in the
// application, a limit the TCP channel itself enforces when configured.
func (m *Manager) RecordResponsePending(logicalAddress uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[logicalAddress]
	if !ok {
		return errors.Wrapf(ErrUnknownECU, "0x%04x", logicalAddress)
	}
	rec.ResponsePendingSeen++
	return nil
}

// RecordNegativeAck increments the negative-ack count for logicalAddress.
func (m *Manager) RecordNegativeAck(logicalAddress uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[logicalAddress]
	if !ok {
		return errors.Wrapf(ErrUnknownECU, "0x%04x", logicalAddress)
	}
	rec.NegativeAcks++
	return nil
}

// Snapshot returns a copy of every tracked record, for the monitor's status
// endpoint and periodic logging.
func (m *Manager) Snapshot() []ECURecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ECURecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out
}
