package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockTimeout = 5 * time.Second

// Store persists State as a single JSON object. Writes go through a sibling
// lock file and an atomic rename so a crash never leaves a torn file.
type Store struct {
	path string
	lock *flock.Flock
}

func NewStore(path, lockPath string) *Store {
	if lockPath == "" {
		lockPath = path + ".lock"
	}
	return &Store{path: path, lock: flock.New(lockPath)}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns zero defaults when the file does not exist. Keys present in
// the file override the defaults; absent keys keep them.
func (s *Store) Load() (State, error) {
	state := State{}
	buf, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("read run state: %w", err)
	}
	if len(buf) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(buf, &state); err != nil {
		return State{}, fmt.Errorf("decode run state %s: %w", s.path, err)
	}
	return state, nil
}

func (s *Store) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create run state directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(context.Background(), lockTimeout)
	if err != nil {
		return fmt.Errorf("lock run state: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock run state: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp run state: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write run state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync run state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close run state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace run state: %w", err)
	}
	return nil
}

// Update loads, applies fn, and saves.
func (s *Store) Update(fn func(*State)) (State, error) {
	state, err := s.Load()
	if err != nil {
		return State{}, err
	}
	fn(&state)
	if err := s.Save(state); err != nil {
		return State{}, err
	}
	return state, nil
}
