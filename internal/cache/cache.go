package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store keeps token metadata per chain in sqlite. Writes take the file lock
// so concurrent CLI processes don't race on the same database.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

// Entry is the cached metadata of one token.
type Entry struct {
	Decimals  int
	Symbol    string
	FetchedAt time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS token_metadata (
			chain_id INTEGER NOT NULL,
			address TEXT NOT NULL,
			decimals INTEGER NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (chain_id, address)
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the cached entry for token on chainID. Entries fetched more
// than maxAge ago are reported as misses.
func (s *Store) Lookup(chainID int64, token common.Address, maxAge time.Duration) (Entry, bool, error) {
	var entry Entry
	var fetchedUnix int64
	err := s.db.QueryRow(
		"SELECT decimals, symbol, fetched_at FROM token_metadata WHERE chain_id = ? AND address = ?",
		chainID, addressKey(token),
	).Scan(&entry.Decimals, &entry.Symbol, &fetchedUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache read: %w", err)
	}
	entry.FetchedAt = time.Unix(fetchedUnix, 0).UTC()
	if maxAge > 0 && s.now().Sub(entry.FetchedAt) > maxAge {
		return entry, false, nil
	}
	return entry, true, nil
}

func (s *Store) Put(chainID int64, token common.Address, entry Entry) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = s.now()
	}
	_, err = s.db.Exec(`
		INSERT INTO token_metadata (chain_id, address, decimals, symbol, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, address) DO UPDATE SET
			decimals=excluded.decimals,
			symbol=excluded.symbol,
			fetched_at=excluded.fetched_at
	`, chainID, addressKey(token), entry.Decimals, entry.Symbol, entry.FetchedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Prune drops entries fetched more than maxAge ago.
func (s *Store) Prune(maxAge time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := s.now().Add(-maxAge).UTC().Unix()
	if _, err := s.db.Exec("DELETE FROM token_metadata WHERE fetched_at < ?", cutoff); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

func addressKey(token common.Address) string {
	return strings.ToLower(token.Hex())
}
