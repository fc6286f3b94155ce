package scraper

import "sync/atomic"

// Stats tracks counters for a single run.
type Stats struct {
	RequestsSent   atomic.Int64
	RequestsFailed atomic.Int64
	Retries        atomic.Int64
	BytesFetched   atomic.Int64
	StoriesParsed  atomic.Int64
	CommentsParsed atomic.Int64
}

// Snapshot returns a copy of the counters safe for reading.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_sent":   s.RequestsSent.Load(),
		"requests_failed": s.RequestsFailed.Load(),
		"retries":         s.Retries.Load(),
		"bytes_fetched":   s.BytesFetched.Load(),
		"stories_parsed":  s.StoriesParsed.Load(),
		"comments_parsed": s.CommentsParsed.Load(),
	}
}
