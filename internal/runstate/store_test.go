package runstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "satsuma_config.json"), "")
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != (State{}) {
		t.Fatalf("expected zero defaults, got %+v", state)
	}
}

func TestSaveAndReloadInFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "satsuma_config.json")
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	state := State{TransactionCount: 3, CurrentRound: 2}
	state.RecordSuccess(at.Add(-time.Minute))
	state.RecordFailure(at)
	if err := NewStore(path, "").Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := NewStore(path, "").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.TransactionCount != 3 || reloaded.CurrentRound != 2 {
		t.Fatalf("unexpected plan counters: %+v", reloaded)
	}
	if reloaded.TotalTransactions != 2 || reloaded.SuccessfulTransactions != 1 || reloaded.FailedTransactions != 1 {
		t.Fatalf("unexpected outcome counters: %+v", reloaded)
	}
	if reloaded.LastTransactionTime == nil || !reloaded.LastTransactionTime.Equal(at) {
		t.Fatalf("expected last transaction time %s, got %v", at, reloaded.LastTransactionTime)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestLoadMergesPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satsuma_config.json")
	if err := os.WriteFile(path, []byte(`{"transaction_count": 12, "last_transaction_time": "2025-01-02T03:04:05.123456Z"}`), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	state, err := NewStore(path, "").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.TransactionCount != 12 || state.TotalTransactions != 0 {
		t.Fatalf("unexpected merged state: %+v", state)
	}
	if state.LastTransactionTime == nil || state.LastTransactionTime.Year() != 2025 {
		t.Fatalf("unexpected last transaction time: %v", state.LastTransactionTime)
	}
}

func TestTimestampReadsZonelessValuesAsLocalTime(t *testing.T) {
	prev := zonelessLocation
	zonelessLocation = time.FixedZone("UTC+2", 2*60*60)
	t.Cleanup(func() { zonelessLocation = prev })

	cases := map[string]time.Time{
		`"2025-01-02T03:04:05.123456"`: time.Date(2025, 1, 2, 1, 4, 5, 123456000, time.UTC),
		`"2025-01-02 03:04:05"`:        time.Date(2025, 1, 2, 1, 4, 5, 0, time.UTC),
		`"2025-01-02T03:04:05Z"`:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		`"2025-01-02T03:04:05+01:00"`:  time.Date(2025, 1, 2, 2, 4, 5, 0, time.UTC),
	}
	for raw, want := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("%s: unmarshal failed: %v", raw, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("%s: expected %s, got %s", raw, want, ts.UTC())
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatal("expected unrecognized timestamp error")
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satsuma_config.json")
	if err := os.WriteFile(path, []byte(`{"transaction_count": "many"`), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if _, err := NewStore(path, "").Load(); err == nil {
		t.Fatal("expected corrupt file error")
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satsuma_config.json")
	store := NewStore(path, "")

	if _, err := store.Update(func(s *State) { s.TransactionCount = 7 }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.TransactionCount != 7 {
		t.Fatalf("expected count 7, got %d", state.TransactionCount)
	}
	if got := state.Summary(); got != "Total: 0, Success: 0, Failed: 0" {
		t.Fatalf("unexpected summary: %q", got)
	}
}
