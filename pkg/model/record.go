package model

import "time"

// Category identifies one of the harvested record kinds. Each category has
// its own schema, storage partition and checkpoint.
type Category string

const (
	CategoryServers  Category = "servers"
	CategoryClients  Category = "clients"
	CategoryUseCases Category = "use-cases"
)

// Categories lists every known category in harvest order.
func Categories() []Category {
	return []Category{CategoryServers, CategoryClients, CategoryUseCases}
}

// ParseCategory resolves a CLI/user-facing category name.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryServers, CategoryClients, CategoryUseCases:
		return Category(s), true
	}
	return "", false
}

// Classification is the closed set of server classifications on the source
// site. Anything else (including the empty string) normalizes to null.
type Classification string

const (
	ClassificationOfficial  Classification = "official"
	ClassificationReference Classification = "reference"
	ClassificationCommunity Classification = "community"
)

// ParseClassification resolves a raw classification value. The empty string
// and unrecognized values are reported as not-ok rather than stored.
func ParseClassification(s string) (Classification, bool) {
	switch Classification(s) {
	case ClassificationOfficial, ClassificationReference, ClassificationCommunity:
		return Classification(s), true
	}
	return "", false
}

// MetricType identifies which weekly estimate the source publishes for a
// server: package downloads or site visitors.
type MetricType string

const (
	MetricDownloads MetricType = "downloads"
	MetricVisitors  MetricType = "visitors"
)

// WeeklyMetric is the source's weekly usage estimate.
type WeeklyMetric struct {
	Type  MetricType `json:"type"`
	Value int64      `json:"value"`
}

// Record is one harvested entity. The id is a slug derived from the source
// URL and is stable across re-harvests, so writes keyed on it are idempotent
// upserts. Every field outside id/name/url/harvested_at is optional; absence
// is a value, not an extraction error.
type Record struct {
	ID             string          `json:"id"`
	Category       Category        `json:"category"`
	Name           string          `json:"name"`
	Provider       *string         `json:"provider"`
	Description    *string         `json:"description"`
	Classification *Classification `json:"classification,omitempty"`
	WeeklyMetric   *WeeklyMetric   `json:"weekly_metric,omitempty"`
	ReleaseDate    *string         `json:"release_date,omitempty"`
	URL            string          `json:"url"`
	SourceURL      *string         `json:"source_url"`
	Platforms      []string        `json:"platforms,omitempty"`
	Categories     []string        `json:"categories"`
	Tags           []string        `json:"tags"`
	HarvestedAt    time.Time       `json:"harvested_at"`
}

// StorageClassification returns the classification used for partitioning
// server files on disk. Servers without a classification are filed under
// community, matching the source site's default.
func (r *Record) StorageClassification() Classification {
	if r.Classification != nil {
		return *r.Classification
	}
	return ClassificationCommunity
}
