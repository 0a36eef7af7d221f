// Package fetch retrieves source pages with rate limiting and retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/universe-mcp/harvester/internal/ratelimit"
)

// Page is the raw content of one source page.
type Page struct {
	Index int
	URL   string
	Body  []byte
}

// Error is a terminal fetch failure for a single page. Permanent failures
// (4xx other than 429) are returned without retry; transient failures carry
// the last error after the retry ceiling was exhausted.
type Error struct {
	PageIndex  int
	URL        string
	StatusCode int
	Attempts   int
	Permanent  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("fetch page %d (%s): %s failure after %d attempt(s): %v",
		e.PageIndex, e.URL, kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher issues rate-limited GETs against the source site. It is stateless
// between calls except for the shared limiter clock.
type Fetcher struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	backoff   ratelimit.Config
	userAgent string
	logger    *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher with a per-attempt timeout and a run-scoped
// rate limiter.
func NewFetcher(timeout time.Duration, backoff ratelimit.Config, userAgent string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   ratelimit.NewLimiter(backoff),
		backoff:   backoff,
		userAgent: userAgent,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Fetch retrieves one page, retrying transient failures with exponential
// backoff. The returned error, if any, is always a *Error.
func (f *Fetcher) Fetch(ctx context.Context, pageIndex int, url string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &Error{PageIndex: pageIndex, URL: url, Attempts: 0, Err: err}
	}

	maxAttempts := f.backoff.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = ratelimit.DefaultConfig().MaxRetries
	}

	var lastErr error
	lastStatus := 0
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		body, status, err := f.attempt(ctx, url)
		switch {
		case err == nil && status == http.StatusOK:
			return &Page{Index: pageIndex, URL: url, Body: body}, nil

		case err == nil && permanentStatus(status):
			return nil, &Error{
				PageIndex:  pageIndex,
				URL:        url,
				StatusCode: status,
				Attempts:   attempt,
				Permanent:  true,
				Err:        fmt.Errorf("unexpected status %d", status),
			}

		default:
			// Transient: network error, 5xx, or 429.
			if err != nil {
				lastErr = err
			} else {
				lastErr = fmt.Errorf("unexpected status %d", status)
			}
			lastStatus = status
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			delay := ratelimit.Backoff(attempt, f.backoff)
			f.logger.Warn("fetch retry",
				"page", pageIndex,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"backoff", delay,
				"error", lastErr)
			if err := f.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, &Error{
		PageIndex:  pageIndex,
		URL:        url,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// permanentStatus reports whether a status code should not be retried.
// Rate-limit responses (429) stay retryable.
func permanentStatus(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsPermanent reports whether err is a permanent (non-retryable) fetch
// failure.
func IsPermanent(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Permanent
}
