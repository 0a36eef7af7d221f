// Package pulse is the PulseMCP extraction adapter. The card layout on the
// site is semi-structured, so field location is heuristic: selectors find the
// cards, and fields are recovered from the card's text lines the same way a
// human scans them.
package pulse

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/universe-mcp/harvester/internal/source"
	"github.com/universe-mcp/harvester/pkg/model"
)

// Section configures extraction for one listing of the site.
type Section struct {
	// Path is the listing path, e.g. "/servers".
	Path string `yaml:"path"`
	// NameSelector locates the record name inside a card.
	NameSelector string `yaml:"name_selector"`
	// CountLabel is the noun in the "1 - 42 of 6488 servers" banner.
	CountLabel string `yaml:"count_label"`
	// RecordsPerPage converts the banner total into a page count.
	RecordsPerPage int `yaml:"records_per_page"`
	// FallbackPages is assumed when the page count cannot be discovered.
	FallbackPages int `yaml:"fallback_pages"`

	// Which optional fields this listing's cards carry.
	HasProvider       bool `yaml:"has_provider"`
	HasClassification bool `yaml:"has_classification"`
	HasMetrics        bool `yaml:"has_metrics"`
	HasReleaseDate    bool `yaml:"has_release_date"`
}

// Config holds selector configuration for every section of the site.
type Config struct {
	BaseURL  string                     `yaml:"base_url"`
	Sections map[model.Category]Section `yaml:"sections"`
}

// DefaultConfig returns the selector set observed on the production site.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Sections: map[model.Category]Section{
			model.CategoryServers: {
				Path:              "/servers",
				NameSelector:      "h3",
				CountLabel:        "servers",
				RecordsPerPage:    42,
				FallbackPages:     155,
				HasProvider:       true,
				HasClassification: true,
				HasMetrics:        true,
				HasReleaseDate:    true,
			},
			model.CategoryClients: {
				Path:           "/clients",
				NameSelector:   "h3",
				CountLabel:     "clients",
				RecordsPerPage: 42,
				FallbackPages:  1,
				HasProvider:    true,
			},
			model.CategoryUseCases: {
				Path:           "/use-cases",
				NameSelector:   "h3",
				CountLabel:     "use cases",
				RecordsPerPage: 42,
				FallbackPages:  1,
			},
		},
	}
}

// LoadConfig reads a selector override file on top of the defaults.
func LoadConfig(path, baseURL string) (Config, error) {
	cfg := DefaultConfig(baseURL)
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read selector config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse selector config %s: %w", path, err)
	}
	return cfg, nil
}

// Adapter implements source.Source for one category of the site.
type Adapter struct {
	category model.Category
	base     *url.URL
	section  Section

	cardHref   *regexp.Regexp
	totalRE    *regexp.Regexp
	pageLinkRE *regexp.Regexp
}

var (
	metricRE  = regexp.MustCompile(`(?i)([0-9][0-9,.]*[kKmM]?)\s*est\.?\s+(downloads|visitors)`)
	releaseRE = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	yearRE    = regexp.MustCompile(`^\d{4}`)
)

// NewAdapter builds the adapter for one category.
func NewAdapter(category model.Category, cfg Config) (*Adapter, error) {
	section, ok := cfg.Sections[category]
	if !ok {
		return nil, fmt.Errorf("no section configured for category %q", category)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return &Adapter{
		category:   category,
		base:       base,
		section:    section,
		cardHref:   regexp.MustCompile(`^` + regexp.QuoteMeta(section.Path) + `/[^/]+$`),
		totalRE:    regexp.MustCompile(`(?i)of\s+([\d,]+)\s+` + regexp.QuoteMeta(section.CountLabel)),
		pageLinkRE: regexp.MustCompile(`[?&]page=(\d+)`),
	}, nil
}

func (a *Adapter) Category() model.Category { return a.category }

// PageURL builds the listing URL for a 1-based page index.
func (a *Adapter) PageURL(page int) string {
	u := *a.base
	u.Path = a.section.Path
	if page > 1 {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (a *Adapter) FallbackPages() int { return a.section.FallbackPages }

// Extract parses one listing page into raw records. Cards it cannot make
// sense of are skipped; a page with no recognizable cards yields zero records.
func (a *Adapter) Extract(content []byte) ([]source.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var records []source.RawRecord
	doc.Find("a[href]").Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Attr("href")
		if !a.cardHref.MatchString(href) {
			return
		}
		records = append(records, a.extractCard(card, href))
	})

	return records, nil
}

func (a *Adapter) extractCard(card *goquery.Selection, href string) source.RawRecord {
	raw := source.RawRecord{
		ID:  strings.TrimPrefix(href, a.section.Path+"/"),
		URL: a.resolve(href),
	}

	raw.Name = strings.TrimSpace(card.Find(a.section.NameSelector).First().Text())

	lines := textLines(card)

	if a.section.HasProvider {
		raw.Provider = findProvider(lines, raw.Name)
	}
	raw.Description = findDescription(lines, raw.Name, raw.Provider)

	if a.section.HasClassification {
		raw.Classification = findClassification(lines)
	}

	if a.section.HasMetrics {
		for _, line := range lines {
			if m := metricRE.FindStringSubmatch(line); m != nil {
				raw.MetricValue = m[1]
				raw.MetricType = strings.ToLower(m[2])
				break
			}
		}
	}

	if a.section.HasReleaseDate {
		for _, line := range lines {
			if d := releaseRE.FindString(line); d != "" {
				raw.ReleaseDate = d
				break
			}
		}
	}

	return raw
}

// TotalPages derives the page count from the result-count banner, falling
// back to the highest page number in pagination links.
func (a *Adapter) TotalPages(content []byte) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return 0, false
	}

	text := doc.Text()
	if m := a.totalRE.FindStringSubmatch(text); m != nil {
		total, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && total > 0 && a.section.RecordsPerPage > 0 {
			return int(math.Ceil(float64(total) / float64(a.section.RecordsPerPage))), true
		}
	}

	maxPage := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if m := a.pageLinkRE.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	if maxPage > 0 {
		return maxPage, true
	}

	return 0, false
}

func (a *Adapter) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return a.base.ResolveReference(ref).String()
}

// findProvider looks for the line right after the name, skipping badge and
// metric lines that sit between them on some cards.
func findProvider(lines []string, name string) string {
	if name == "" {
		return ""
	}
	for i, line := range lines {
		if !strings.Contains(line, name) || i+1 >= len(lines) {
			continue
		}
		candidate := lines[i+1]
		if len(candidate) >= 100 {
			continue
		}
		lower := strings.ToLower(candidate)
		skip := false
		for _, kw := range []string{"official", "reference", "community", "est ", "downloads", "visitors"} {
			if strings.Contains(lower, kw) {
				skip = true
				break
			}
		}
		if !skip {
			return candidate
		}
	}
	return ""
}

// findDescription picks the first substantial text line that is not the
// name, the provider, a metric, or a date.
func findDescription(lines []string, name, provider string) string {
	for _, line := range lines {
		if len(line) <= 30 || line == name || line == provider {
			continue
		}
		if strings.Contains(strings.ToLower(line), "est ") {
			continue
		}
		if yearRE.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

func findClassification(lines []string) string {
	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "official"):
			return "official"
		case strings.Contains(lower, "reference"):
			return "reference"
		case strings.Contains(lower, "community"):
			return "community"
		}
	}
	return ""
}

// textLines collects the trimmed text nodes of a selection in document
// order, one line per node.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return lines
}
