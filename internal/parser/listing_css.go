package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hnsnap/hnsnap/internal/types"
)

// CSSListingParser extracts story records using CSS selectors via goquery.
type CSSListingParser struct {
	base   *url.URL
	max    int
	window Window
	logger *slog.Logger
}

// NewCSSListingParser creates a CSS selector listing parser. Links are
// resolved against baseURL, at most max records are returned, and rows
// with an absolute timestamp outside window are dropped.
func NewCSSListingParser(baseURL string, max int, window Window, logger *slog.Logger) (*CSSListingParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &CSSListingParser{
		base:   base,
		max:    max,
		window: window,
		logger: logger.With("component", "css_listing_parser"),
	}, nil
}

// ParseListing implements ListingParser.
func (p *CSSListingParser) ParseListing(resp *types.Response) ([]*types.StoryRecord, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	rows := doc.Find("tr.athing")
	if rows.Length() == 0 {
		return nil, &types.ParseError{
			URL:      resp.Request.URLString(),
			Selector: "tr.athing",
			Err:      types.ErrNoStories,
		}
	}

	var records []*types.StoryRecord
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(records) >= p.max {
			return false
		}

		titleLink := row.Find("span.titleline > a").First()
		title := strings.TrimSpace(titleLink.Text())
		if title == "" {
			return true // separator or non-story row
		}
		href, _ := titleLink.Attr("href")

		// Metadata lives in the sibling subtext row
		sub := row.Next().Find("td.subtext")
		points := parseLeadingInt(sub.Find("span.score").Text())
		author := strings.TrimSpace(sub.Find("a.hnuser").Text())

		age := sub.Find("span.age").First()
		ageTitle, _ := age.Attr("title")
		abs, hasAbs := parseAgeTitle(ageTitle)
		if hasAbs && !p.window.Contains(abs) {
			p.logger.Debug("story outside window, skipped", "title", title, "submitted", abs)
			return true
		}

		commentCount, commentsURL := p.commentAnchor(sub)

		records = append(records, &types.StoryRecord{
			Rank:         len(records) + 1,
			Title:        title,
			URL:          resolveLink(p.base, href),
			Points:       points,
			Author:       author,
			SubmittedAt:  submittedAt(abs, hasAbs, age.Text()),
			CommentCount: commentCount,
			CommentsURL:  commentsURL,
		})
		return true
	})

	p.logger.Debug("listing parsed", "rows", rows.Length(), "stories", len(records))
	return records, nil
}

// commentAnchor finds the comments link in a subtext row: the last anchor
// pointing at an item page, with text like "99 comments" or "discuss".
func (p *CSSListingParser) commentAnchor(sub *goquery.Selection) (int, string) {
	var count int
	var link string

	sub.Find("a[href^='item?id=']").Each(func(i int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if strings.Contains(text, "comment") || strings.EqualFold(text, "discuss") {
			count = parseCommentCount(text)
			if href, ok := a.Attr("href"); ok {
				link = resolveLink(p.base, href)
			}
		}
	})
	return count, link
}
