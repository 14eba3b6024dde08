package registry

import (
	"testing"

	"github.com/pkg/errors"
)

func TestRegisterAndGetECU(t *testing.T) {
	m := NewManager(3)

	rec := m.RegisterECU("ECU1", 0xFA25)
	if rec.LogicalAddress != 0xFA25 {
		t.Fatalf("LogicalAddress = 0x%04x, want 0xFA25", rec.LogicalAddress)
	}

	got, err := m.GetECU(0xFA25)
	if err != nil {
		t.Fatalf("GetECU: %v", err)
	}
	if got.ConversationName != "ECU1" {
		t.Errorf("ConversationName = %q, want ECU1", got.ConversationName)
	}
}

func TestGetUnknownECU(t *testing.T) {
	m := NewManager(3)
	_, err := m.GetECU(0x1234)
	if !errors.Is(err, ErrUnknownECU) {
		t.Fatalf("err = %v, want ErrUnknownECU", err)
	}
}

func TestRecordTimeoutRaisesAlertAtThreshold(t *testing.T) {
	m := NewManager(3)
	m.RegisterECU("ECU1", 0xFA25)

	for i := 0; i < 2; i++ {
		alert, err := m.RecordTimeout(0xFA25)
		if err != nil {
			t.Fatalf("RecordTimeout: %v", err)
		}
		if alert != nil {
			t.Fatalf("unexpected alert before threshold at iteration %d: %+v", i, alert)
		}
	}

	alert, err := m.RecordTimeout(0xFA25)
	if err != nil {
		t.Fatalf("RecordTimeout: %v", err)
	}
	if alert == nil {
		t.Fatal("expected alert at threshold, got nil")
	}
	if alert.LogicalAddress != 0xFA25 {
		t.Errorf("alert.LogicalAddress = 0x%04x, want 0xFA25", alert.LogicalAddress)
	}
}

func TestRecordSuccessResetsTimeoutStreak(t *testing.T) {
	m := NewManager(2)
	m.RegisterECU("ECU1", 0xFA25)
	m.RecordTimeout(0xFA25)

	if err := m.RecordSuccess(0xFA25); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	rec, _ := m.GetECU(0xFA25)
	if rec.ConsecutiveTimeouts != 0 {
		t.Errorf("ConsecutiveTimeouts = %d, want 0 after RecordSuccess", rec.ConsecutiveTimeouts)
	}
}

func TestSnapshotReturnsAllRecords(t *testing.T) {
	m := NewManager(0)
	m.RegisterECU("ECU1", 0xFA25)
	m.RegisterECU("ECU2", 0xFA26)

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot len = %d, want 2", len(snap))
	}
}

func TestThresholdZeroDisablesAlerts(t *testing.T) {
	m := NewManager(0)
	m.RegisterECU("ECU1", 0xFA25)
	for i := 0; i < 10; i++ {
		alert, err := m.RecordTimeout(0xFA25)
		if err != nil {
			t.Fatalf("RecordTimeout: %v", err)
		}
		if alert != nil {
			t.Fatalf("unexpected alert with threshold disabled: %+v", alert)
		}
	}
}
