// Package scraper orchestrates the pipeline: fetch the front-page
// listing, parse story stubs, fetch and parse each story's comment page,
// and assemble the final snapshot.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hnsnap/hnsnap/internal/config"
	"github.com/hnsnap/hnsnap/internal/fetcher"
	"github.com/hnsnap/hnsnap/internal/parser"
	"github.com/hnsnap/hnsnap/internal/types"
)

// Clock supplies the current time. Injected so the previous-day window
// and the idempotence property are testable.
type Clock func() time.Time

// Scraper runs one scrape to completion. Any fetch or parse failure,
// after configured retries, aborts the whole run: a partial snapshot
// would break the rank contiguity of the output.
type Scraper struct {
	cfg      *config.Config
	fetcher  fetcher.Fetcher
	listing  parser.ListingParser
	comments parser.CommentParser
	logger   *slog.Logger
	clock    Clock
	stats    Stats
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithClock overrides the scraper's clock.
func WithClock(c Clock) Option {
	return func(s *Scraper) { s.clock = c }
}

// New creates a Scraper from its collaborators.
func New(cfg *config.Config, f fetcher.Fetcher, lp parser.ListingParser, cp parser.CommentParser, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:      cfg,
		fetcher:  f,
		listing:  lp,
		comments: cp,
		logger:   logger.With("component", "scraper"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListingURL returns the front-page URL for the configured day. The
// /front endpoint defaults to the previous calendar day.
func ListingURL(cfg *config.Scrape) string {
	if cfg.Day != "" {
		return cfg.BaseURL + "/front?day=" + cfg.Day
	}
	return cfg.BaseURL + "/front"
}

// Run executes the full pipeline and returns the assembled snapshot.
func (s *Scraper) Run(ctx context.Context) (*types.Snapshot, error) {
	start := s.clock()

	stubs, err := s.fetchListing(ctx)
	if err != nil {
		return nil, err
	}
	s.stats.StoriesParsed.Store(int64(len(stubs)))

	if s.cfg.Scrape.FetchComments {
		if err := s.fetchAllComments(ctx, stubs); err != nil {
			return nil, err
		}
	}

	snapshot := &types.Snapshot{Stories: make([]types.StoryRecord, len(stubs))}
	for i, stub := range stubs {
		if stub.Comments == nil {
			stub.Comments = []types.CommentNode{}
		}
		snapshot.Stories[i] = *stub
	}

	if err := snapshot.Validate(s.cfg.Scrape.MaxStories); err != nil {
		return nil, fmt.Errorf("snapshot invariant violated: %w", err)
	}

	s.logger.Info("scrape complete",
		"stories", len(snapshot.Stories),
		"comments", snapshot.CommentTotal(),
		"requests", s.stats.RequestsSent.Load(),
		"retries", s.stats.Retries.Load(),
		"bytes", s.stats.BytesFetched.Load(),
		"elapsed", s.clock().Sub(start),
	)
	return snapshot, nil
}

// Stats returns the run statistics.
func (s *Scraper) Stats() *Stats {
	return &s.stats
}

func (s *Scraper) fetchListing(ctx context.Context) ([]*types.StoryRecord, error) {
	listingURL := ListingURL(&s.cfg.Scrape)
	req, err := types.NewRequest(listingURL)
	if err != nil {
		return nil, err
	}
	req.Tag = "listing"

	resp, err := s.fetchWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	stubs, err := s.listing.ParseListing(resp)
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing parsed", "url", listingURL, "stories", len(stubs))
	return stubs, nil
}

// fetchAllComments fills in each stub's comment tree. Fetches run under a
// bounded worker pool; results land in the stub they belong to, so the
// snapshot's rank order never depends on completion order.
func (s *Scraper) fetchAllComments(ctx context.Context, stubs []*types.StoryRecord) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.cfg.Scrape.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, stub := range stubs {
		if stub.CommentsURL == "" {
			stub.Comments = []types.CommentNode{}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(stub *types.StoryRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			nodes, err := s.fetchComments(ctx, stub)
			if err != nil {
				fail(fmt.Errorf("story rank %d (%s): %w", stub.Rank, stub.CommentsURL, err))
				return
			}
			stub.Comments = nodes
		}(stub)

		if s.cfg.Scrape.PolitenessDelay > 0 {
			select {
			case <-time.After(s.cfg.Scrape.PolitenessDelay):
			case <-ctx.Done():
			}
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (s *Scraper) fetchComments(ctx context.Context, stub *types.StoryRecord) ([]types.CommentNode, error) {
	req, err := types.NewRequest(stub.CommentsURL)
	if err != nil {
		return nil, err
	}
	req.Tag = "comments"
	req.Rank = stub.Rank

	resp, err := s.fetchWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	nodes, err := s.comments.ParseComments(resp)
	if err != nil {
		return nil, err
	}
	s.stats.CommentsParsed.Add(int64(countAll(nodes)))
	return nodes, nil
}

// fetchWithRetry fetches a request, retrying retryable failures up to the
// configured limit. Retry-After from rate-limit responses takes priority
// over the configured delay.
func (s *Scraper) fetchWithRetry(ctx context.Context, req *types.Request) (*types.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.Scrape.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.cfg.Scrape.RetryDelay
			var fe *types.FetchError
			if errors.As(lastErr, &fe) && fe.RetryAfter > 0 {
				delay = fe.RetryAfter
			}
			s.logger.Warn("retrying fetch",
				"url", req.URLString(),
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			s.stats.Retries.Add(1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s.stats.RequestsSent.Add(1)
		resp, err := s.fetcher.Fetch(ctx, req)
		if err == nil {
			s.stats.BytesFetched.Add(int64(len(resp.Body)))
			return resp, nil
		}
		s.stats.RequestsFailed.Add(1)
		lastErr = err

		var fe *types.FetchError
		if !errors.As(err, &fe) || !fe.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %w", types.ErrMaxRetries, lastErr)
}

func countAll(nodes []types.CommentNode) int {
	total := 0
	for _, n := range nodes {
		total++
		total += countAll(n.Children)
	}
	return total
}
