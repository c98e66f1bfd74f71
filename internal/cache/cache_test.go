package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type countingReader struct {
	decimals int
	err      error
	calls    int
}

func (r *countingReader) Decimals(context.Context, common.Address) (int, error) {
	r.calls++
	return r.decimals, r.err
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "tokens.db"), filepath.Join(tmp, "tokens.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreLookupRespectsMaxAge(t *testing.T) {
	store := openTestStore(t)
	token := common.HexToAddress("0x2C8abD2A528D19AFc33d2eBA507c0F405c131335")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if err := store.Put(5115, token, Entry{Decimals: 6, Symbol: "USDC"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry, ok, err := store.Lookup(5115, token, time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected fresh hit, got ok=%v err=%v", ok, err)
	}
	if entry.Decimals != 6 || entry.Symbol != "USDC" || !entry.FetchedAt.Equal(base) {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok, err := store.Lookup(5115, token, time.Hour); err != nil || ok {
		t.Fatalf("expected aged-out miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Prune(time.Hour); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if _, ok, err := store.Lookup(5115, token, 0); err != nil || ok {
		t.Fatalf("expected pruned entry to be gone, got ok=%v err=%v", ok, err)
	}
}

func TestTokenDecimalsCachesReads(t *testing.T) {
	store := openTestStore(t)
	reader := &countingReader{decimals: 6}
	token := common.HexToAddress("0x2C8abD2A528D19AFc33d2eBA507c0F405c131335")

	decimals := NewTokenDecimals(store, reader, 5115)
	for i := 0; i < 3; i++ {
		got, err := decimals.Decimals(context.Background(), token)
		if err != nil {
			t.Fatalf("Decimals failed: %v", err)
		}
		if got != 6 {
			t.Fatalf("unexpected decimals: %d", got)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("expected one chain read, got %d", reader.calls)
	}

	other := NewTokenDecimals(store, reader, 1)
	if _, err := other.Decimals(context.Background(), token); err != nil {
		t.Fatalf("Decimals on other chain failed: %v", err)
	}
	if reader.calls != 2 {
		t.Fatalf("expected cache key to include chain id, got %d reads", reader.calls)
	}
}

func TestTokenDecimalsDoesNotCacheErrors(t *testing.T) {
	store := openTestStore(t)
	reader := &countingReader{err: errors.New("execution reverted")}
	token := common.HexToAddress("0x000000000000000000000000000000000000dead")

	decimals := NewTokenDecimals(store, reader, 5115)
	if _, err := decimals.Decimals(context.Background(), token); err == nil {
		t.Fatal("expected read error")
	}
	reader.err = nil
	reader.decimals = 18
	got, err := decimals.Decimals(context.Background(), token)
	if err != nil || got != 18 {
		t.Fatalf("expected fresh read after error, got %d err=%v", got, err)
	}
	if reader.calls != 2 {
		t.Fatalf("expected two chain reads, got %d", reader.calls)
	}
}

func TestTokenDecimalsWithoutStore(t *testing.T) {
	reader := &countingReader{decimals: 18}
	decimals := NewTokenDecimals(nil, reader, 5115)
	for i := 0; i < 2; i++ {
		if _, err := decimals.Decimals(context.Background(), common.Address{}); err != nil {
			t.Fatalf("Decimals failed: %v", err)
		}
	}
	if reader.calls != 2 {
		t.Fatalf("expected pass-through reads, got %d", reader.calls)
	}
}
