package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store is the unbounded outcome log backing History.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS outcomes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			success INTEGER NOT NULL,
			class TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_outcomes_kind_seq ON outcomes(kind, seq DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save appends out. Outcomes are immutable, so saving the same ID twice fails.
func (s *Store) Save(out Outcome) error {
	if strings.TrimSpace(out.ID) == "" {
		return fmt.Errorf("save outcome: missing outcome id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock history store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	created := out.Timestamp.UTC().Unix()
	if out.Timestamp.IsZero() {
		created = time.Now().UTC().Unix()
	}
	success := 0
	if out.Success {
		success = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO outcomes (outcome_id, kind, success, class, tx_hash, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, out.ID, string(out.Kind), success, string(out.Class), out.TxHash, created, payload)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *Store) Get(outcomeID string) (Outcome, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM outcomes WHERE outcome_id = ?", outcomeID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, fmt.Errorf("outcome not found: %s", outcomeID)
		}
		return Outcome{}, fmt.Errorf("read outcome: %w", err)
	}
	var out Outcome
	if err := json.Unmarshal(payload, &out); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome payload: %w", err)
	}
	return out, nil
}

// Recent returns up to limit outcomes, oldest first. An empty kind matches all.
func (s *Store) Recent(kind string, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(kind) == "" {
		rows, err = s.db.Query("SELECT payload FROM outcomes ORDER BY seq DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM outcomes WHERE kind = ? ORDER BY seq DESC LIMIT ?", kind, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]Outcome, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		var out Outcome
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode outcome row: %w", err)
		}
		outcomes = append(outcomes, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	for i, j := 0, len(outcomes)-1; i < j; i, j = i+1, j-1 {
		outcomes[i], outcomes[j] = outcomes[j], outcomes[i]
	}
	return outcomes, nil
}

func (s *Store) Count() (total, succeeded int, err error) {
	err = s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(success), 0) FROM outcomes").Scan(&total, &succeeded)
	if err != nil {
		return 0, 0, fmt.Errorf("count outcomes: %w", err)
	}
	return total, succeeded, nil
}
