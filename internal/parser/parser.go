// Package parser extracts story records and comment trees from fetched
// Hacker News markup. Two listing engines exist (CSS selectors via goquery,
// XPath via htmlquery) behind the same interface.
package parser

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hnsnap/hnsnap/internal/types"
)

// ListingParser extracts story stubs from a front-page response.
type ListingParser interface {
	// ParseListing returns rank-ordered story records without comments.
	ParseListing(resp *types.Response) ([]*types.StoryRecord, error)
}

// CommentParser extracts the nested comment tree from a story's
// comment-page response.
type CommentParser interface {
	// ParseComments returns the top-level comments in page display order.
	// A page without a comment section yields an empty slice, not an error.
	ParseComments(resp *types.Response) ([]types.CommentNode, error)
}

// Window bounds accepted submission times, [Start, End). A zero window
// accepts everything.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start.IsZero() && w.End.IsZero() {
		return true
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

// IsZero reports whether the window is unbounded.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// PreviousDay returns the window covering the calendar day before now,
// in now's location.
func PreviousDay(now time.Time) Window {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{Start: midnight.AddDate(0, 0, -1), End: midnight}
}

// resolveLink makes href absolute against base. Story links on the site
// are either absolute or relative item?id= paths.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}

// parseLeadingInt reads the integer prefix of strings like "123 points".
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// parseCommentCount reads counts like "99 comments", "1 comment" or
// "discuss" (zero comments).
func parseCommentCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "discuss") {
		return 0
	}
	return parseLeadingInt(s)
}

// parseAgeTitle parses the title attribute of the age span. Newer pages
// carry "2006-01-02T15:04:05 <unix>", older ones just the datetime. Times
// are UTC.
func parseAgeTitle(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		if unix, err := strconv.ParseInt(s[i+1:], 10, 64); err == nil {
			return time.Unix(unix, 0).UTC(), true
		}
		s = s[:i]
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// submittedAt formats the submission time for a record: RFC3339 when the
// page carried an absolute timestamp, otherwise the raw relative text.
func submittedAt(abs time.Time, ok bool, relative string) string {
	if ok {
		return abs.Format(time.RFC3339)
	}
	return strings.TrimSpace(relative)
}
