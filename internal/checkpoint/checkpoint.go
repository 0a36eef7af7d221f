// Package checkpoint persists per-category harvest progress. A checkpoint is
// only ever a safe lower bound: it is advanced after a page's records are
// durably stored, so a crash repeats at most one page.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/universe-mcp/harvester/pkg/model"
)

// Common checkpoint errors.
var (
	ErrNotFound = errors.New("checkpoint not found")
	ErrLocked   = errors.New("category is locked by another run")
)

// Checkpoint is the durable progress marker for one category.
type Checkpoint struct {
	LastCompletedPage int       `json:"last_completed_page"`
	RecordsHarvested  int       `json:"records_harvested"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Store reads and writes per-category checkpoints.
type Store interface {
	// Load returns the checkpoint for a category, or ErrNotFound on first run.
	Load(category model.Category) (*Checkpoint, error)
	// Save durably replaces the checkpoint. A crash mid-save must leave the
	// previous checkpoint readable.
	Save(category model.Category, cp *Checkpoint) error
	// Reset removes the checkpoint. Missing checkpoints are not an error.
	Reset(category model.Category) error
	// Acquire takes the run lock for a category, serializing concurrent runs.
	// The returned release function must be called when the run ends.
	Acquire(category model.Category) (release func(), err error)
}

// FileStore keeps one JSON checkpoint file per category in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the checkpoint directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(category model.Category) string {
	return filepath.Join(s.dir, fmt.Sprintf("checkpoint_%s.json", category))
}

func (s *FileStore) lockPath(category model.Category) string {
	return filepath.Join(s.dir, fmt.Sprintf("run_%s.lock", category))
}

func (s *FileStore) Load(category model.Category) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", s.path(category), err)
	}
	return &cp, nil
}

// Save writes to a temp file in the same directory, fsyncs, then renames
// over the old checkpoint. A partial write never replaces a valid one.
func (s *FileStore) Save(category model.Category, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".checkpoint_%s-*", category))
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path(category)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

func (s *FileStore) Reset(category model.Category) error {
	err := os.Remove(s.path(category))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}

// Acquire creates the category's lock file exclusively. A second concurrent
// run of the same category fails with ErrLocked; different categories are
// independent. A lock whose recorded process no longer exists (the holder
// was killed before release) is reclaimed, so a crashed run never needs a
// manual lock cleanup before the restart.
func (s *FileStore) Acquire(category model.Category) (func(), error) {
	path := s.lockPath(category)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !lockIsStale(path) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale run lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
}

// lockIsStale reports whether the lock's recorded holder is gone. A lock we
// cannot attribute to a live process (unreadable, malformed, dead pid) is
// stale; a lock naming our own or another live process is not.
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Released between our open attempt and now.
		return os.IsNotExist(err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	if pid == os.Getpid() {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	err = proc.Signal(syscall.Signal(0))
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}
