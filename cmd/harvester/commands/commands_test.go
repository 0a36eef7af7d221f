package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universe-mcp/harvester/internal/checkpoint"
	"github.com/universe-mcp/harvester/internal/index"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolveCategories(t *testing.T) {
	all, err := resolveCategories("all")
	require.NoError(t, err)
	assert.Equal(t, model.Categories(), all)

	all, err = resolveCategories("")
	require.NoError(t, err)
	assert.Equal(t, model.Categories(), all)

	one, err := resolveCategories("clients")
	require.NoError(t, err)
	assert.Equal(t, []model.Category{model.CategoryClients}, one)

	_, err = resolveCategories("widgets")
	assert.Error(t, err)
}

func TestCheckpointShowAndReset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HARVESTER_CHECKPOINT_DIR", dir)

	cps, err := checkpoint.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, cps.Save(model.CategoryServers, &checkpoint.Checkpoint{
		LastCompletedPage: 7,
		RecordsHarvested:  294,
		UpdatedAt:         time.Now().UTC(),
	}))

	out, err := runCommand(t, "checkpoint", "show", "servers")
	require.NoError(t, err)

	var shown map[model.Category]*checkpoint.Checkpoint
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	require.NotNil(t, shown[model.CategoryServers])
	assert.Equal(t, 7, shown[model.CategoryServers].LastCompletedPage)

	_, err = runCommand(t, "checkpoint", "reset", "servers")
	require.NoError(t, err)

	_, err = cps.Load(model.CategoryServers)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestValidateCommandReportsViolations(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("HARVESTER_DATA_DIR", dataDir)

	s, err := store.NewFileStore(dataDir)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), &model.Record{
		ID:          "ok",
		Category:    model.CategoryServers,
		Name:        "OK Server",
		URL:         "https://example.com/servers/ok",
		HarvestedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.Upsert(context.Background(), &model.Record{
		ID:          "broken",
		Category:    model.CategoryServers,
		Name:        "",
		URL:         "https://example.com/servers/broken",
		HarvestedAt: time.Now().UTC(),
	}))

	out, err := runCommand(t, "validate", "servers")
	require.Error(t, err)
	assert.Contains(t, out, "broken")
}

func TestIndexAndSearchCommands(t *testing.T) {
	dataDir, indexDir := t.TempDir(), t.TempDir()
	t.Setenv("HARVESTER_DATA_DIR", dataDir)
	t.Setenv("HARVESTER_INDEX_DIR", indexDir)

	s, err := store.NewFileStore(dataDir)
	require.NoError(t, err)
	desc := "Filesystem access for agents."
	require.NoError(t, s.Upsert(context.Background(), &model.Record{
		ID:          "file-server",
		Category:    model.CategoryServers,
		Name:        "File Server",
		Description: &desc,
		URL:         "https://example.com/servers/file-server",
		HarvestedAt: time.Now().UTC(),
	}))

	_, err = runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "--json", "filesystem")
	require.NoError(t, err)

	var results []*model.Record
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "file-server", results[0].ID)

	out, err = runCommand(t, "search", "nonexistent-keyword")
	require.NoError(t, err)
	assert.Contains(t, out, "0 result(s)")

	// The index command must have published the full document set.
	for _, name := range index.Documents() {
		_, err := os.Stat(filepath.Join(indexDir, name))
		assert.NoError(t, err, name)
	}
}
