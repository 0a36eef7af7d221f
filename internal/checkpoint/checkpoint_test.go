package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universe-mcp/harvester/pkg/model"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Load(model.CategoryServers)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s := newStore(t)

	want := &Checkpoint{
		LastCompletedPage: 42,
		RecordsHarvested:  1764,
		UpdatedAt:         time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(model.CategoryServers, want))

	got, err := s.Load(model.CategoryServers)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(model.CategoryClients, &Checkpoint{LastCompletedPage: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint_clients.json", entries[0].Name())
}

func TestCategoriesAreIndependent(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save(model.CategoryServers, &Checkpoint{LastCompletedPage: 10}))
	require.NoError(t, s.Save(model.CategoryClients, &Checkpoint{LastCompletedPage: 3}))

	servers, err := s.Load(model.CategoryServers)
	require.NoError(t, err)
	clients, err := s.Load(model.CategoryClients)
	require.NoError(t, err)

	assert.Equal(t, 10, servers.LastCompletedPage)
	assert.Equal(t, 3, clients.LastCompletedPage)
}

func TestCorruptCheckpointIsAnError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint_servers.json"), []byte("{truncated"), 0o644))

	_, err = s.Load(model.CategoryServers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt checkpoint")
}

func TestReset(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save(model.CategoryServers, &Checkpoint{LastCompletedPage: 5}))
	require.NoError(t, s.Reset(model.CategoryServers))

	_, err := s.Load(model.CategoryServers)
	assert.ErrorIs(t, err, ErrNotFound)

	// Resetting an absent checkpoint is fine.
	require.NoError(t, s.Reset(model.CategoryServers))
}

func TestAcquireReclaimsOrphanedLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	lockPath := filepath.Join(dir, "run_servers.lock")

	// A lock left behind by a holder that was killed before release. The
	// pid is above the kernel's pid ceiling, so no live process can own it.
	require.NoError(t, os.WriteFile(lockPath, []byte("999999999\n"), 0o644))

	release, err := s.Acquire(model.CategoryServers)
	require.NoError(t, err)
	defer release()

	// The reclaimed lock now records the current holder.
	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))
}

func TestAcquireReclaimsMalformedLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_clients.lock"), []byte("not a pid"), 0o644))

	release, err := s.Acquire(model.CategoryClients)
	require.NoError(t, err)
	release()
}

func TestAcquireRespectsLiveHolder(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	// The current process is alive, so its lock must not be reclaimed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_servers.lock"),
		[]byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	_, err = s.Acquire(model.CategoryServers)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAcquireSerializesSameCategory(t *testing.T) {
	s := newStore(t)

	release, err := s.Acquire(model.CategoryServers)
	require.NoError(t, err)

	_, err = s.Acquire(model.CategoryServers)
	assert.ErrorIs(t, err, ErrLocked)

	// A different category is independent.
	release2, err := s.Acquire(model.CategoryClients)
	require.NoError(t, err)
	release2()

	release()

	release3, err := s.Acquire(model.CategoryServers)
	require.NoError(t, err)
	release3()
}
