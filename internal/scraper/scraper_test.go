package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnsnap/hnsnap/internal/config"
	"github.com/hnsnap/hnsnap/internal/fetcher"
	"github.com/hnsnap/hnsnap/internal/parser"
	"github.com/hnsnap/hnsnap/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// Fixed scrape time: the previous-day window covers 2024-03-01.
var testNow = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

const listingPage = `<html><body><center><table>
<tr class='athing submission' id='101'>
  <td class="title"><span class="rank">1.</span></td>
  <td class="votelinks"></td>
  <td class="title"><span class="titleline"><a href="https://example.com/first">First story</a></span></td>
</tr>
<tr><td colspan="2"></td><td class="subtext"><span class="subline">
  <span class="score">120 points</span> by <a href="user?id=pat" class="hnuser">pat</a>
  <span class="age" title="2024-03-01T12:00:00"><a href="item?id=101">22 hours ago</a></span>
  | <a href="item?id=101">3&nbsp;comments</a>
</span></td></tr>
<tr class='athing submission' id='102'>
  <td class="title"><span class="rank">2.</span></td>
  <td class="votelinks"></td>
  <td class="title"><span class="titleline"><a href="item?id=102">Second story, self post</a></span></td>
</tr>
<tr><td colspan="2"></td><td class="subtext"><span class="subline">
  <span class="score">48 points</span> by <a href="user?id=sam" class="hnuser">sam</a>
  <span class="age" title="2024-03-01T18:45:00"><a href="item?id=102">15 hours ago</a></span>
  | <a href="item?id=102">discuss</a>
</span></td></tr>
</table></center></body></html>`

const commentPage101 = `<html><body>
<table border="0" class='comment-tree'>
<tr class='athing comtr' id='201'><td><table><tr>
  <td class='ind' indent='0'></td>
  <td class="default"><span class="comhead"><a href="user?id=quinn" class="hnuser">quinn</a></span>
  <div class="comment"><div class="commtext c00">Nice launch.</div></div></td>
</tr></table></td></tr>
<tr class='athing comtr' id='202'><td><table><tr>
  <td class='ind' indent='1'></td>
  <td class="default"><span class="comhead"><a href="user?id=pat" class="hnuser">pat</a></span>
  <div class="comment"><div class="commtext c00">Thanks!</div></div></td>
</tr></table></td></tr>
<tr class='athing comtr' id='203'><td><table><tr>
  <td class='ind' indent='0'></td>
  <td class="default"><span class="comhead"><a href="user?id=ruth" class="hnuser">ruth</a></span>
  <div class="comment"><div class="commtext c00">How does it scale?</div></div></td>
</tr></table></td></tr>
</table>
</body></html>`

const commentPage102 = `<html><body>
<table class='fatitem'><tr><td>no comments yet</td></tr></table>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/front", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "101":
			w.Write([]byte(commentPage101))
		case "102":
			w.Write([]byte(commentPage102))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestScraper(t *testing.T, baseURL string, mutate func(*config.Config)) *Scraper {
	t.Helper()

	cfg := config.Default()
	cfg.Scrape.BaseURL = baseURL
	cfg.Scrape.PolitenessDelay = 0
	cfg.Scrape.RetryDelay = 10 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	fetch, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { fetch.Close() })

	listing, err := parser.NewCSSListingParser(baseURL, cfg.Scrape.MaxStories, parser.PreviousDay(testNow), testLogger)
	require.NoError(t, err)

	return New(cfg, fetch, listing, parser.NewCommentTreeParser(testLogger), testLogger,
		WithClock(func() time.Time { return testNow }))
}

func TestScraperRun(t *testing.T) {
	srv := newTestServer(t)
	scr := newTestScraper(t, srv.URL, nil)

	snapshot, err := scr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Stories, 2)

	first := snapshot.Stories[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "First story", first.Title)
	assert.Equal(t, "https://example.com/first", first.URL)
	assert.Equal(t, 120, first.Points)
	assert.Equal(t, "pat", first.Author)
	assert.Equal(t, 3, first.CommentCount)

	require.Len(t, first.Comments, 2)
	assert.Equal(t, "quinn", first.Comments[0].Author)
	require.Len(t, first.Comments[0].Children, 1)
	assert.Equal(t, "pat", first.Comments[0].Children[0].Author)
	assert.Equal(t, 1, first.Comments[0].Children[0].Depth)
	assert.Equal(t, "ruth", first.Comments[1].Author)

	second := snapshot.Stories[1]
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, srv.URL+"/item?id=102", second.URL)
	assert.Equal(t, 0, second.CommentCount)
	assert.NotNil(t, second.Comments)
	assert.Empty(t, second.Comments)

	assert.Equal(t, 3, snapshot.CommentTotal())
	assert.Equal(t, int64(3), scr.Stats().RequestsSent.Load())
}

func TestScraperIdempotence(t *testing.T) {
	srv := newTestServer(t)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		scr := newTestScraper(t, srv.URL, nil)
		snapshot, err := scr.Run(context.Background())
		require.NoError(t, err)

		data, err := json.Marshal(snapshot)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}

	assert.Equal(t, string(outputs[0]), string(outputs[1]),
		"same pages and same clock must produce identical bytes")
}

func TestScraperConcurrentOrder(t *testing.T) {
	srv := newTestServer(t)
	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.Concurrency = 4
	})

	snapshot, err := scr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Stories, 2)

	for i, story := range snapshot.Stories {
		assert.Equal(t, i+1, story.Rank, "rank order must not depend on fetch completion order")
	}
	assert.Equal(t, "First story", snapshot.Stories[0].Title)
	assert.Equal(t, "Second story, self post", snapshot.Stories[1].Title)
}

func TestScraperNoComments(t *testing.T) {
	srv := newTestServer(t)
	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.FetchComments = false
	})

	snapshot, err := scr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Stories, 2)

	// Only the listing request goes out; comment trees stay empty.
	assert.Equal(t, int64(1), scr.Stats().RequestsSent.Load())
	for _, story := range snapshot.Stories {
		assert.NotNil(t, story.Comments)
		assert.Empty(t, story.Comments)
	}
}

func TestScraperListingFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	scr := newTestScraper(t, srv.URL, nil)

	snapshot, err := scr.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, snapshot, "a failed run must not yield a partial snapshot")

	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.IsRetryable())
}

func TestScraperCommentFailureAbortsRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/front", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "101" {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.Write([]byte(commentPage102))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.Concurrency = 2
	})

	snapshot, err := scr.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.Contains(t, err.Error(), "rank 1")
}

func TestScraperRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/front", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "101" {
			w.Write([]byte(commentPage101))
			return
		}
		w.Write([]byte(commentPage102))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.MaxRetries = 2
	})

	snapshot, err := scr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Stories, 2)
	assert.Equal(t, int64(1), scr.Stats().Retries.Load())
	assert.Equal(t, int64(1), scr.Stats().RequestsFailed.Load())
}

func TestScraperRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.MaxRetries = 2
	})

	_, err := scr.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMaxRetries))
	assert.Equal(t, int64(3), scr.Stats().RequestsSent.Load())
	assert.Equal(t, int64(2), scr.Stats().Retries.Load())
}

func TestScraperNonRetryableStopsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	scr := newTestScraper(t, srv.URL, func(cfg *config.Config) {
		cfg.Scrape.MaxRetries = 3
	})

	_, err := scr.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), scr.Stats().RequestsSent.Load(), "non-retryable status must not be retried")
}

func TestListingURL(t *testing.T) {
	cfg := &config.Scrape{BaseURL: "https://news.ycombinator.com"}
	assert.Equal(t, "https://news.ycombinator.com/front", ListingURL(cfg))

	cfg.Day = "2024-03-01"
	assert.Equal(t, "https://news.ycombinator.com/front?day=2024-03-01", ListingURL(cfg))
}
