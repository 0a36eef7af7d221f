// Package harvest drives the fetch -> extract -> normalize -> persist loop
// across a category's page range, with checkpointed resume.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/universe-mcp/harvester/internal/checkpoint"
	"github.com/universe-mcp/harvester/internal/fetch"
	"github.com/universe-mcp/harvester/internal/normalize"
	"github.com/universe-mcp/harvester/internal/source"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/internal/telemetry"
	"github.com/universe-mcp/harvester/pkg/model"
)

// Mode selects how the page range of a run is determined.
type Mode string

const (
	// ModeFull harvests from page 1 to the discovered last page.
	ModeFull Mode = "full"
	// ModeTest harvests a small fixed page prefix and never touches the
	// checkpoint, so test runs cannot corrupt production resume state.
	ModeTest Mode = "test"
	// ModeResume continues after the last checkpointed page.
	ModeResume Mode = "resume"
	// ModeRange harvests an explicit start/end page window.
	ModeRange Mode = "range"
)

// Options configures one run.
type Options struct {
	Mode Mode
	// StartPage and EndPage bound a ModeRange run; EndPage 0 means
	// "discover". Ignored in other modes.
	StartPage int
	EndPage   int
}

// Summary aggregates the statistics of one run.
type Summary struct {
	RunID            uuid.UUID      `json:"run_id"`
	Category         model.Category `json:"category"`
	Mode             Mode           `json:"mode"`
	StartPage        int            `json:"start_page"`
	EndPage          int            `json:"end_page"`
	PagesAttempted   int            `json:"pages_attempted"`
	FailedPages      []int          `json:"failed_pages,omitempty"`
	RecordsExtracted int            `json:"records_extracted"`
	RecordsPersisted int            `json:"records_persisted"`
	RecordsDropped   int            `json:"records_dropped"`
	CheckpointPage   int            `json:"checkpoint_page"`
	Elapsed          time.Duration  `json:"elapsed"`
}

// Success reports whether every page and record made it through. Operators
// key the process exit status off this.
func (s *Summary) Success() bool {
	return len(s.FailedPages) == 0 && s.RecordsDropped == 0
}

// Orchestrator runs the harvest pipeline for one category. It carries all
// run state explicitly; there are no package-level counters.
type Orchestrator struct {
	src         source.Source
	fetcher     *fetch.Fetcher
	records     store.Store
	checkpoints checkpoint.Store
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	testPages   int
	now         func() time.Time
}

// New wires an orchestrator. metrics may be nil.
func New(src source.Source, fetcher *fetch.Fetcher, records store.Store, checkpoints checkpoint.Store,
	logger *slog.Logger, metrics *telemetry.Metrics, testPages int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if testPages <= 0 {
		testPages = 2
	}
	return &Orchestrator{
		src:         src,
		fetcher:     fetcher,
		records:     records,
		checkpoints: checkpoints,
		logger:      logger,
		metrics:     metrics,
		testPages:   testPages,
		now:         time.Now,
	}
}

// Run harvests the category's page range in strictly increasing order.
// Page-level failures are recorded and skipped; storage and checkpoint
// failures abort the run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	category := o.src.Category()
	summary := &Summary{
		RunID:    uuid.New(),
		Category: category,
		Mode:     opts.Mode,
	}
	started := o.now()
	defer func() { summary.Elapsed = o.now().Sub(started) }()

	release, err := o.checkpoints.Acquire(category)
	if err != nil {
		return summary, err
	}
	defer release()

	harvested := 0
	startPage := 1

	switch opts.Mode {
	case ModeResume:
		cp, err := o.checkpoints.Load(category)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			// First run: resume degrades to a full harvest.
		case err != nil:
			return summary, err
		default:
			startPage = cp.LastCompletedPage + 1
			harvested = cp.RecordsHarvested
			summary.CheckpointPage = cp.LastCompletedPage
			o.logger.Info("resuming from checkpoint",
				"category", category,
				"last_completed_page", cp.LastCompletedPage,
				"records_harvested", cp.RecordsHarvested)
		}
	case ModeRange:
		if opts.StartPage > 0 {
			startPage = opts.StartPage
		}
	case ModeTest, ModeFull:
	default:
		return summary, fmt.Errorf("unknown harvest mode %q", opts.Mode)
	}

	endPage := opts.EndPage
	var prefetched *fetch.Page
	if opts.Mode == ModeTest {
		endPage = o.testPages
	} else if endPage <= 0 {
		endPage, prefetched = o.discoverEndPage(ctx, startPage)
	}

	summary.StartPage = startPage
	summary.EndPage = endPage

	if startPage > endPage {
		o.logger.Info("nothing to harvest", "category", category,
			"start_page", startPage, "end_page", endPage)
		return summary, nil
	}

	o.logger.Info("harvest starting",
		"run_id", summary.RunID,
		"category", category,
		"mode", opts.Mode,
		"start_page", startPage,
		"end_page", endPage)

	// Once a page has failed, the checkpoint stays put so the next resume
	// retries it; later pages are still harvested (the upsert is idempotent,
	// re-processing them is cheap).
	checkpointFrozen := false

	for page := startPage; page <= endPage; page++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		content := prefetched
		prefetched = nil
		if content == nil || content.Index != page {
			fetchStart := o.now()
			content, err = o.fetcher.Fetch(ctx, page, o.src.PageURL(page))
			o.metrics.ObserveFetchDuration(ctx, string(category), o.now().Sub(fetchStart).Seconds())
			if err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				summary.PagesAttempted++
				summary.FailedPages = append(summary.FailedPages, page)
				checkpointFrozen = true
				o.metrics.PageFailed(ctx, string(category))
				o.logger.Error("page failed", "category", category, "page", page, "error", err)
				continue
			}
		}
		summary.PagesAttempted++
		o.metrics.PageFetched(ctx, string(category))

		persisted, dropped, err := o.processPage(ctx, content, summary)
		if err != nil {
			// Storage errors are not recoverable locally: continuing would
			// make the checkpoint lie about what was persisted.
			return summary, fmt.Errorf("page %d: %w", page, err)
		}
		harvested += persisted

		if persisted == 0 && dropped == 0 {
			o.logger.Warn("no records extracted from in-range page",
				"category", category, "page", page)
		}

		if opts.Mode != ModeTest && !checkpointFrozen {
			cp := &checkpoint.Checkpoint{
				LastCompletedPage: page,
				RecordsHarvested:  harvested,
				UpdatedAt:         o.now().UTC(),
			}
			if err := o.checkpoints.Save(category, cp); err != nil {
				return summary, fmt.Errorf("checkpoint save after page %d: %w", page, err)
			}
			summary.CheckpointPage = page
		}
	}

	o.logger.Info("harvest finished",
		"run_id", summary.RunID,
		"category", category,
		"pages_attempted", summary.PagesAttempted,
		"pages_failed", len(summary.FailedPages),
		"records_persisted", summary.RecordsPersisted,
		"records_dropped", summary.RecordsDropped)

	return summary, nil
}

// processPage extracts, normalizes and persists one page's records. Only
// storage errors propagate; malformed records are dropped with a warning.
func (o *Orchestrator) processPage(ctx context.Context, page *fetch.Page, summary *Summary) (persisted, dropped int, err error) {
	category := o.src.Category()

	raws, err := o.src.Extract(page.Body)
	if err != nil {
		o.logger.Warn("page extraction failed, treating as empty",
			"category", category, "page", page.Index, "error", err)
		return 0, 0, nil
	}
	summary.RecordsExtracted += len(raws)

	now := o.now()
	for _, raw := range raws {
		rec, err := normalize.Record(raw, category, now)
		if err != nil {
			if errors.Is(err, normalize.ErrMissingRequired) {
				dropped++
				summary.RecordsDropped++
				o.metrics.RecordDropped(ctx, string(category))
				o.logger.Warn("record dropped",
					"category", category, "page", page.Index, "id", raw.ID, "error", err)
				continue
			}
			return persisted, dropped, err
		}

		if err := o.records.Upsert(ctx, rec); err != nil {
			return persisted, dropped, fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
		persisted++
		summary.RecordsPersisted++
	}
	o.metrics.RecordsPersisted(ctx, string(category), int64(persisted))

	return persisted, dropped, nil
}

// discoverEndPage fetches the first page of the range and reads the total
// page count off it. The fetched page is returned so the run does not fetch
// it twice. Discovery failures fall back to the adapter's configured count.
func (o *Orchestrator) discoverEndPage(ctx context.Context, startPage int) (int, *fetch.Page) {
	category := o.src.Category()

	page, err := o.fetcher.Fetch(ctx, startPage, o.src.PageURL(startPage))
	if err != nil {
		o.logger.Warn("page discovery fetch failed, using fallback",
			"category", category, "fallback_pages", o.src.FallbackPages(), "error", err)
		return o.src.FallbackPages(), nil
	}

	total, ok := o.src.TotalPages(page.Body)
	if !ok {
		o.logger.Warn("could not determine total pages, using fallback",
			"category", category, "fallback_pages", o.src.FallbackPages())
		return o.src.FallbackPages(), page
	}

	o.logger.Info("discovered page range", "category", category, "total_pages", total)
	return total, page
}
