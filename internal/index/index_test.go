package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	official := model.ClassificationOfficial
	acme := "Acme"
	desc := "A server that does things with files and more files."

	records := []*model.Record{
		{
			ID:             "alpha",
			Category:       model.CategoryServers,
			Name:           "Alpha",
			Provider:       &acme,
			Description:    &desc,
			Classification: &official,
			WeeklyMetric:   &model.WeeklyMetric{Type: model.MetricDownloads, Value: 1000},
			URL:            "https://example.com/servers/alpha",
			Categories:     []string{"files", "search"},
			HarvestedAt:    time.Now().UTC(),
		},
		{
			ID:          "beta",
			Category:    model.CategoryServers,
			Name:        "Beta",
			Provider:    &acme,
			URL:         "https://example.com/servers/beta",
			Categories:  []string{"files"},
			HarvestedAt: time.Now().UTC(),
		},
		{
			ID:          "gamma",
			Category:    model.CategoryServers,
			Name:        "Gamma",
			URL:         "https://example.com/servers/gamma",
			HarvestedAt: time.Now().UTC(),
		},
		{
			ID:          "client-one",
			Category:    model.CategoryClients,
			Name:        "Client One",
			URL:         "https://example.com/clients/client-one",
			HarvestedAt: time.Now().UTC(),
		},
		{
			ID:          "case-one",
			Category:    model.CategoryUseCases,
			Name:        "Case One",
			URL:         "https://example.com/use-cases/case-one",
			HarvestedAt: time.Now().UTC(),
		},
	}
	for _, rec := range records {
		require.NoError(t, s.Upsert(ctx, rec))
	}
	return s
}

func readDoc(t *testing.T, dir, name string, out any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestBuildPublishesAllDocuments(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(seedStore(t), dir, nil)
	require.NoError(t, b.Build(context.Background()))

	for _, name := range Documents() {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// Staging directories must not survive a successful build.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".staging-"), e.Name())
	}
}

func TestBuildListings(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(seedStore(t), dir, nil)
	require.NoError(t, b.Build(context.Background()))

	var servers Listing
	readDoc(t, dir, DocAllServers, &servers)
	assert.Equal(t, 3, servers.Count)
	require.Len(t, servers.Records, 3)
	assert.Equal(t, "alpha", servers.Records[0].ID)
	assert.Equal(t, "beta", servers.Records[1].ID)
	assert.Equal(t, "gamma", servers.Records[2].ID)
	assert.False(t, servers.GeneratedAt.IsZero())

	var clients Listing
	readDoc(t, dir, DocAllClients, &clients)
	assert.Equal(t, 1, clients.Count)

	var useCases Listing
	readDoc(t, dir, DocAllUseCases, &useCases)
	assert.Equal(t, 1, useCases.Count)
}

func TestBuildGroupings(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(seedStore(t), dir, nil)
	require.NoError(t, b.Build(context.Background()))

	var byClass Grouping
	readDoc(t, dir, DocServersByClassification, &byClass)
	// Unclassified servers are grouped under community.
	assert.Equal(t, []string{"community", "official"}, byClass.Keys)
	assert.Len(t, byClass.Groups["community"], 2)
	assert.Len(t, byClass.Groups["official"], 1)

	var byProvider Grouping
	readDoc(t, dir, DocServersByProvider, &byProvider)
	assert.Equal(t, []string{"Acme", "unknown"}, byProvider.Keys)
	assert.Len(t, byProvider.Groups["Acme"], 2)
	assert.Len(t, byProvider.Groups["unknown"], 1)

	var byCategory Grouping
	readDoc(t, dir, DocServersByCategory, &byCategory)
	assert.Equal(t, []string{"files", "search"}, byCategory.Keys)
	assert.Len(t, byCategory.Groups["files"], 2)
	assert.Len(t, byCategory.Groups["search"], 1)
}

func TestBuildStatistics(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(seedStore(t), dir, nil)
	require.NoError(t, b.Build(context.Background()))

	var stats Statistics
	readDoc(t, dir, DocStatistics, &stats)

	assert.Equal(t, 3, stats.Totals["servers"])
	assert.Equal(t, 1, stats.Totals["clients"])
	assert.Equal(t, 1, stats.Totals["use-cases"])
	assert.Equal(t, 1, stats.ByClassification["official"])
	assert.Equal(t, 2, stats.ByClassification["community"])
	assert.Equal(t, []NameCount{{Name: "Acme", Count: 2}}, stats.TopProviders)
	assert.Equal(t, []NameCount{{Name: "files", Count: 2}, {Name: "search", Count: 1}}, stats.TopCategories)
	assert.Equal(t, 1, stats.WithDescription)
	assert.Equal(t, 1, stats.WithMetrics)
}

func TestBuildDeterministic(t *testing.T) {
	s := seedStore(t)
	dirA, dirB := t.TempDir(), t.TempDir()

	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ba := NewBuilder(s, dirA, nil)
	ba.now = func() time.Time { return fixed }
	bb := NewBuilder(s, dirB, nil)
	bb.now = func() time.Time { return fixed }

	require.NoError(t, ba.Build(context.Background()))
	require.NoError(t, bb.Build(context.Background()))

	for _, name := range Documents() {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}
}

func TestRankingTopN(t *testing.T) {
	counts := make(map[string]int)
	for i := 0; i < 30; i++ {
		counts[string(rune('a'+i))] = i + 1
	}
	ranked := ranking(counts, topN)
	require.Len(t, ranked, topN)
	assert.Equal(t, 30, ranked[0].Count)
	assert.Equal(t, 11, ranked[topN-1].Count)
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument(DocStatistics))
	assert.False(t, IsDocument("secrets.json"))
	assert.False(t, IsDocument("../statistics.json"))
}
