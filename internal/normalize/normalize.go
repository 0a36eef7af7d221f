// Package normalize converts raw extracted text fields into the typed record
// model. Malformed optional fields degrade to null; only a missing required
// field fails the record.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/universe-mcp/harvester/internal/source"
	"github.com/universe-mcp/harvester/pkg/model"
)

// ErrMissingRequired marks a record that cannot be persisted because a
// required field (id, name, url) was not extracted.
var ErrMissingRequired = errors.New("missing required field")

var metricValueRE = regexp.MustCompile(`^([0-9][0-9,]*(?:\.[0-9]+)?)([kKmM])?$`)

// dateFormats is the closed set of textual date formats the source uses.
var dateFormats = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Record turns one raw field-set into a typed Record. now is stamped as the
// harvest time so a whole run shares one clock source.
func Record(raw source.RawRecord, category model.Category, now time.Time) (*model.Record, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingRequired)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingRequired)
	}
	if raw.URL == "" {
		return nil, fmt.Errorf("%w: url", ErrMissingRequired)
	}

	rec := &model.Record{
		ID:          raw.ID,
		Category:    category,
		Name:        raw.Name,
		URL:         raw.URL,
		Provider:    optional(raw.Provider),
		Description: optional(raw.Description),
		SourceURL:   optional(raw.SourceURL),
		Categories:  emptyAsNil(raw.Categories),
		Tags:        emptyAsNil(raw.Tags),
		Platforms:   emptyAsNil(raw.Platforms),
		HarvestedAt: now.UTC(),
	}

	// The source sometimes renders classification as an empty string; that is
	// stored as null, never as "".
	if c, ok := model.ParseClassification(strings.ToLower(strings.TrimSpace(raw.Classification))); ok {
		rec.Classification = &c
	}

	if m := Metric(raw.MetricType, raw.MetricValue); m != nil {
		rec.WeeklyMetric = m
	}

	if d, ok := Date(raw.ReleaseDate); ok {
		rec.ReleaseDate = &d
	}

	return rec, nil
}

// Metric builds the weekly metric from its raw type and value, or nil when
// either does not parse.
func Metric(rawType, rawValue string) *model.WeeklyMetric {
	var mt model.MetricType
	switch strings.ToLower(strings.TrimSpace(rawType)) {
	case string(model.MetricDownloads):
		mt = model.MetricDownloads
	case string(model.MetricVisitors):
		mt = model.MetricVisitors
	default:
		return nil
	}

	value, ok := MetricValue(rawValue)
	if !ok {
		return nil
	}
	return &model.WeeklyMetric{Type: mt, Value: value}
}

// MetricValue parses a numeric figure with an optional k/m suffix:
// "439k" -> 439000, "1.2m" -> 1200000, "42" -> 42. Thousands separators are
// stripped. Anything else reports not-ok.
func MetricValue(s string) (int64, bool) {
	m := metricValueRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}

	return int64(n), true
}

// Date parses one of the source's known date formats and reports the ISO
// form. Unparseable input reports not-ok rather than failing the record.
func Date(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func emptyAsNil(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return ss
}
