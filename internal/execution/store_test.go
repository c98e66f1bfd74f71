package execution

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveGetRecent(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		out := newOutcome(KindSwap)
		out.Success = i%2 == 0
		out.TxHash = fmt.Sprintf("0x%064x", i)
		out.Nonce = noncePtr(uint64(i))
		if err := store.Save(out); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	approve := newOutcome(KindApprove)
	approve.Success = true
	if err := store.Save(approve); err != nil {
		t.Fatalf("Save approve failed: %v", err)
	}

	got, err := store.Get(approve.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != KindApprove || !got.Success {
		t.Fatalf("unexpected outcome: %+v", got)
	}

	swaps, err := store.Recent(string(KindSwap), 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(swaps) != 3 || *swaps[0].Nonce != 2 || *swaps[2].Nonce != 4 {
		t.Fatalf("expected last three swaps oldest first, got %+v", swaps)
	}

	total, succeeded, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 6 || succeeded != 4 {
		t.Fatalf("expected 6 total / 4 succeeded, got %d / %d", total, succeeded)
	}

	if err := store.Save(approve); err == nil {
		t.Fatal("expected duplicate outcome id to be rejected")
	}
}

func TestStoreGetMissingOutcome(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get("missing"); err == nil {
		t.Fatal("expected missing outcome error")
	}
}

type failingLog struct{ calls int }

func (l *failingLog) Save(Outcome) error {
	l.calls++
	return errors.New("disk full")
}

func TestHistoryBoundsDisplayButLogsEverything(t *testing.T) {
	store := openTestStore(t)
	history := NewHistory(3, store, nil)

	for i := 0; i < 5; i++ {
		out := newOutcome(KindSwap)
		out.Nonce = noncePtr(uint64(i))
		out.Timestamp = time.Unix(int64(i), 0).UTC()
		history.Append(out)
	}
	if history.Len() != 3 {
		t.Fatalf("expected bounded history of 3, got %d", history.Len())
	}
	recent := history.Recent(2)
	if len(recent) != 2 || *recent[0].Nonce != 3 || *recent[1].Nonce != 4 {
		t.Fatalf("expected last two in order, got %+v", recent)
	}
	total, _, err := store.Count()
	if err != nil || total != 5 {
		t.Fatalf("expected all five outcomes logged, got %d err=%v", total, err)
	}

	log := &failingLog{}
	unlogged := NewHistory(0, log, nil)
	unlogged.Append(newOutcome(KindVote))
	if log.calls != 1 || unlogged.Len() != 1 {
		t.Fatal("expected log failure not to drop the in-memory entry")
	}

	var nilHistory *History
	nilHistory.Append(newOutcome(KindVote))
	if nilHistory.Recent(5) != nil {
		t.Fatal("expected nil history to be inert")
	}
}
