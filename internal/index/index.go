// Package index derives the published JSON index documents from the record
// store. Index builds are deterministic for a given store state and are
// published atomically, so readers never observe a half-written set.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

// Published document file names. The web layer serves exactly this set.
const (
	DocAllServers              = "all-servers.json"
	DocServersByClassification = "servers-by-classification.json"
	DocServersByProvider       = "servers-by-provider.json"
	DocServersByCategory       = "servers-by-category.json"
	DocAllClients              = "all-clients.json"
	DocAllUseCases             = "all-usecases.json"
	DocStatistics              = "statistics.json"
)

// Documents lists every published index document.
func Documents() []string {
	return []string{
		DocAllServers,
		DocServersByClassification,
		DocServersByProvider,
		DocServersByCategory,
		DocAllClients,
		DocAllUseCases,
		DocStatistics,
	}
}

// IsDocument reports whether name is a published index document.
func IsDocument(name string) bool {
	for _, d := range Documents() {
		if d == name {
			return true
		}
	}
	return false
}

// unknownProvider groups records whose provider could not be extracted.
const unknownProvider = "unknown"

// topN bounds the provider and category rankings in statistics.json.
const topN = 20

// Listing is a flat index of one category's records.
type Listing struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Count       int             `json:"count"`
	Records     []*model.Record `json:"records"`
}

// Grouping is an index of records bucketed by a string key. Keys holds the
// bucket names sorted ascending so consumers get a stable iteration order.
type Grouping struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Keys        []string                   `json:"keys"`
	Groups      map[string][]*model.Record `json:"groups"`
}

// NameCount is one ranking entry. Rankings are ordered slices rather than
// maps so the order survives JSON encoding.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics is the corpus-level summary document.
type Statistics struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	Totals           map[string]int `json:"totals"`
	ByClassification map[string]int `json:"by_classification"`
	TopProviders     []NameCount    `json:"top_providers"`
	TopCategories    []NameCount    `json:"top_categories"`
	WithDescription  int            `json:"with_description"`
	WithMetrics      int            `json:"with_metrics"`
}

// Builder derives and publishes the index documents.
type Builder struct {
	records store.Store
	dir     string
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder creates a builder that publishes into dir.
func NewBuilder(records store.Store, dir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{records: records, dir: dir, logger: logger, now: time.Now}
}

// Build derives every index document from the current store state and
// publishes the whole set. Documents are staged in a temp directory first;
// a failure mid-build leaves the previously published set intact.
func (b *Builder) Build(ctx context.Context) error {
	generatedAt := b.now().UTC()

	servers, err := b.records.List(ctx, model.CategoryServers)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	clients, err := b.records.List(ctx, model.CategoryClients)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}
	useCases, err := b.records.List(ctx, model.CategoryUseCases)
	if err != nil {
		return fmt.Errorf("failed to list use-cases: %w", err)
	}

	docs := map[string]any{
		DocAllServers:              listing(servers, generatedAt),
		DocServersByClassification: byClassification(servers, generatedAt),
		DocServersByProvider:       byProvider(servers, generatedAt),
		DocServersByCategory:       byCategory(servers, generatedAt),
		DocAllClients:              listing(clients, generatedAt),
		DocAllUseCases:             listing(useCases, generatedAt),
		DocStatistics:              statistics(servers, clients, useCases, generatedAt),
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}
	staging, err := os.MkdirTemp(b.dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for name, doc := range docs {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(staging, name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	// Every document staged cleanly; move the set into place.
	for name := range docs {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(b.dir, name)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	b.logger.Info("indexes published",
		"dir", b.dir,
		"documents", len(docs),
		"servers", len(servers),
		"clients", len(clients),
		"use_cases", len(useCases))
	return nil
}

func listing(records []*model.Record, generatedAt time.Time) *Listing {
	return &Listing{
		GeneratedAt: generatedAt,
		Count:       len(records),
		Records:     records,
	}
}

func byClassification(servers []*model.Record, generatedAt time.Time) *Grouping {
	groups := make(map[string][]*model.Record)
	for _, rec := range servers {
		key := string(rec.StorageClassification())
		groups[key] = append(groups[key], rec)
	}
	return grouping(groups, generatedAt)
}

func byProvider(servers []*model.Record, generatedAt time.Time) *Grouping {
	groups := make(map[string][]*model.Record)
	for _, rec := range servers {
		key := unknownProvider
		if rec.Provider != nil && *rec.Provider != "" {
			key = *rec.Provider
		}
		groups[key] = append(groups[key], rec)
	}
	return grouping(groups, generatedAt)
}

func byCategory(servers []*model.Record, generatedAt time.Time) *Grouping {
	groups := make(map[string][]*model.Record)
	for _, rec := range servers {
		for _, cat := range rec.Categories {
			groups[cat] = append(groups[cat], rec)
		}
	}
	return grouping(groups, generatedAt)
}

func grouping(groups map[string][]*model.Record, generatedAt time.Time) *Grouping {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &Grouping{GeneratedAt: generatedAt, Keys: keys, Groups: groups}
}

func statistics(servers, clients, useCases []*model.Record, generatedAt time.Time) *Statistics {
	stats := &Statistics{
		GeneratedAt: generatedAt,
		Totals: map[string]int{
			string(model.CategoryServers):  len(servers),
			string(model.CategoryClients):  len(clients),
			string(model.CategoryUseCases): len(useCases),
		},
		ByClassification: make(map[string]int),
	}

	providers := make(map[string]int)
	categories := make(map[string]int)
	for _, rec := range servers {
		stats.ByClassification[string(rec.StorageClassification())]++
		if rec.Provider != nil && *rec.Provider != "" {
			providers[*rec.Provider]++
		}
		for _, cat := range rec.Categories {
			categories[cat]++
		}
		if rec.Description != nil && *rec.Description != "" {
			stats.WithDescription++
		}
		if rec.WeeklyMetric != nil {
			stats.WithMetrics++
		}
	}

	stats.TopProviders = ranking(providers, topN)
	stats.TopCategories = ranking(categories, topN)
	return stats
}

// ranking sorts counts descending, breaking ties by name so the output is
// deterministic, and keeps the first limit entries.
func ranking(counts map[string]int, limit int) []NameCount {
	ranked := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, NameCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
