package store

import (
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []*Record {
	return []*Record{
		{
			TabID:      "tab-a",
			StartedAt:  base,
			EndedAt:    base.Add(2 * time.Minute),
			Duration:   2 * time.Minute,
			Outcome:    OutcomeExpired,
			Warnings:   1,
			Extensions: 0,
		},
		{
			TabID:      "tab-a",
			StartedAt:  base.Add(3 * time.Minute),
			EndedAt:    base.Add(10 * time.Minute),
			Duration:   7 * time.Minute,
			Outcome:    OutcomeReset,
			Warnings:   0,
			Extensions: 2,
		},
		{
			TabID:      "tab-b",
			StartedAt:  base.Add(4 * time.Minute),
			EndedAt:    base.Add(6 * time.Minute),
			Duration:   2 * time.Minute,
			Outcome:    OutcomeExpired,
			Warnings:   2,
			Extensions: 1,
		},
	}
}

// verifyStore exercises one RecordStore implementation against the shared
// contract: newest-first ordering, limit handling, and outcome counting.
func verifyStore(t *testing.T, s RecordStore) {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, rec := range sampleRecords(base) {
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save() = %v", err)
		}
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent(10) returned %d records, want 3", len(recent))
	}
	if recent[0].TabID != "tab-a" || recent[0].Outcome != OutcomeReset {
		t.Errorf("Newest record = %s/%s, want tab-a/reset", recent[0].TabID, recent[0].Outcome)
	}
	if recent[1].TabID != "tab-b" {
		t.Errorf("Second record tab = %s, want tab-b", recent[1].TabID)
	}
	if recent[2].Duration != 2*time.Minute {
		t.Errorf("Oldest record duration = %v, want 2m", recent[2].Duration)
	}
	if recent[2].Warnings != 1 {
		t.Errorf("Oldest record warnings = %d, want 1", recent[2].Warnings)
	}

	limited, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent(2) = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Recent(2) returned %d records, want 2", len(limited))
	}

	expired, err := s.CountByOutcome(OutcomeExpired)
	if err != nil {
		t.Fatalf("CountByOutcome() = %v", err)
	}
	if expired != 2 {
		t.Errorf("CountByOutcome(expired) = %d, want 2", expired)
	}

	resets, err := s.CountByOutcome(OutcomeReset)
	if err != nil {
		t.Fatalf("CountByOutcome() = %v", err)
	}
	if resets != 1 {
		t.Errorf("CountByOutcome(reset) = %d, want 1", resets)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	verifyStore(t, s)
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	rec := &Record{TabID: "tab-a", EndedAt: time.Now(), Outcome: OutcomeReset}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	rec.TabID = "mutated"

	recent, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent() = %v", err)
	}
	if recent[0].TabID != "tab-a" {
		t.Errorf("Stored record tab = %s, caller mutation leaked in", recent[0].TabID)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "vigil_test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() = %v", err)
	}
	defer s.Close()

	verifyStore(t, s)
}
