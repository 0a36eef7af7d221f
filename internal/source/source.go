// Package source defines the adapter boundary between the harvest pipeline
// and a concrete paginated site. The pipeline only ever sees this interface;
// selector rules live in the concrete adapter.
package source

import "github.com/universe-mcp/harvester/pkg/model"

// RawRecord is one extracted field-set before normalization. Every field is
// raw text exactly as found on the page; typing and enum resolution happen in
// the normalizer.
type RawRecord struct {
	ID             string
	Name           string
	Provider       string
	Description    string
	Classification string
	// MetricType is "downloads" or "visitors"; MetricValue is the raw figure,
	// possibly with a k/m suffix or thousands separators (e.g. "439k").
	MetricType  string
	MetricValue string
	ReleaseDate string
	URL         string
	SourceURL   string
	Categories  []string
	Tags        []string
	Platforms   []string
}

// Source is one paginated listing to harvest. Extract is a pure function of
// page content: a malformed page yields zero records, never an error that
// aborts the page.
type Source interface {
	// Category reports which record kind this source produces.
	Category() model.Category
	// PageURL builds the URL of the 1-based page index.
	PageURL(page int) string
	// Extract parses one page's content into raw records, in page order.
	Extract(content []byte) ([]RawRecord, error)
	// TotalPages derives the total page count from a listing page, if the
	// page carries enough information to tell.
	TotalPages(content []byte) (int, bool)
	// FallbackPages is the assumed page count when discovery fails.
	FallbackPages() int
}
