// Package search answers ad-hoc queries against the published server index.
// It reads the index document rather than the record store, so results always
// reflect what consumers of the published files see.
package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/universe-mcp/harvester/internal/index"
	"github.com/universe-mcp/harvester/pkg/model"
)

// ErrNoIndex means the index documents have not been built yet.
var ErrNoIndex = errors.New("server index not found, run an index build first")

// Query is one search request. Empty fields do not filter; all present
// filters must match.
type Query struct {
	// Keywords are matched case-insensitively against name, provider,
	// description and tags. Every keyword must match somewhere.
	Keywords       []string
	Classification string
	Provider       string
	Category       string
	// Limit caps the result count; zero means unlimited.
	Limit int
}

// Searcher runs queries against a published index directory.
type Searcher struct {
	indexDir string
}

// NewSearcher creates a searcher over the given index directory.
func NewSearcher(indexDir string) *Searcher {
	return &Searcher{indexDir: indexDir}
}

// Search loads the server index and returns the records matching the query,
// in index (id) order.
func (s *Searcher) Search(q Query) ([]*model.Record, error) {
	data, err := os.ReadFile(filepath.Join(s.indexDir, index.DocAllServers))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoIndex
		}
		return nil, fmt.Errorf("failed to read server index: %w", err)
	}

	var listing index.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("corrupt server index: %w", err)
	}

	var results []*model.Record
	for _, rec := range listing.Records {
		if !matches(rec, q) {
			continue
		}
		results = append(results, rec)
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results, nil
}

func matches(rec *model.Record, q Query) bool {
	if q.Classification != "" && string(rec.StorageClassification()) != q.Classification {
		return false
	}
	if q.Provider != "" {
		if rec.Provider == nil || !strings.EqualFold(*rec.Provider, q.Provider) {
			return false
		}
	}
	if q.Category != "" && !containsFold(rec.Categories, q.Category) {
		return false
	}

	if len(q.Keywords) > 0 {
		haystack := searchText(rec)
		for _, kw := range q.Keywords {
			if !strings.Contains(haystack, strings.ToLower(kw)) {
				return false
			}
		}
	}
	return true
}

func searchText(rec *model.Record) string {
	var b strings.Builder
	b.WriteString(rec.Name)
	b.WriteByte(' ')
	if rec.Provider != nil {
		b.WriteString(*rec.Provider)
		b.WriteByte(' ')
	}
	if rec.Description != nil {
		b.WriteString(*rec.Description)
		b.WriteByte(' ')
	}
	for _, tag := range rec.Tags {
		b.WriteString(tag)
		b.WriteByte(' ')
	}
	return strings.ToLower(b.String())
}

func containsFold(ss []string, want string) bool {
	for _, s := range ss {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
