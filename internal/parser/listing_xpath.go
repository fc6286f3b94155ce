package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/hnsnap/hnsnap/internal/types"
)

// XPathListingParser extracts story records using XPath via htmlquery.
// It mirrors CSSListingParser field-for-field.
type XPathListingParser struct {
	base   *url.URL
	max    int
	window Window
	logger *slog.Logger
}

// NewXPathListingParser creates an XPath listing parser.
func NewXPathListingParser(baseURL string, max int, window Window, logger *slog.Logger) (*XPathListingParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &XPathListingParser{
		base:   base,
		max:    max,
		window: window,
		logger: logger.With("component", "xpath_listing_parser"),
	}, nil
}

// ParseListing implements ListingParser.
func (p *XPathListingParser) ParseListing(resp *types.Response) ([]*types.StoryRecord, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	rows, err := htmlquery.QueryAll(doc, "//tr[contains(concat(' ', normalize-space(@class), ' '), ' athing ')]")
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Selector: "athing rows", Err: err}
	}
	if len(rows) == 0 {
		return nil, &types.ParseError{
			URL:      resp.Request.URLString(),
			Selector: "athing rows",
			Err:      types.ErrNoStories,
		}
	}

	var records []*types.StoryRecord
	for _, row := range rows {
		if len(records) >= p.max {
			break
		}

		titleLink := p.queryOne(row, ".//span[contains(@class, 'titleline')]/a[1]")
		if titleLink == nil {
			continue
		}
		title := strings.TrimSpace(htmlquery.InnerText(titleLink))
		if title == "" {
			continue
		}
		href := htmlquery.SelectAttr(titleLink, "href")

		sub := p.queryOne(row, "following-sibling::tr[1]//td[contains(@class, 'subtext')]")
		var points int
		var author, ageTitle, ageText string
		var commentCount int
		var commentsURL string
		if sub != nil {
			if score := p.queryOne(sub, ".//span[contains(@class, 'score')]"); score != nil {
				points = parseLeadingInt(htmlquery.InnerText(score))
			}
			if user := p.queryOne(sub, ".//a[contains(@class, 'hnuser')]"); user != nil {
				author = strings.TrimSpace(htmlquery.InnerText(user))
			}
			if age := p.queryOne(sub, ".//span[contains(@class, 'age')]"); age != nil {
				ageTitle = htmlquery.SelectAttr(age, "title")
				ageText = htmlquery.InnerText(age)
			}
			commentCount, commentsURL = p.commentAnchor(sub)
		}

		abs, hasAbs := parseAgeTitle(ageTitle)
		if hasAbs && !p.window.Contains(abs) {
			p.logger.Debug("story outside window, skipped", "title", title, "submitted", abs)
			continue
		}

		records = append(records, &types.StoryRecord{
			Rank:         len(records) + 1,
			Title:        title,
			URL:          resolveLink(p.base, href),
			Points:       points,
			Author:       author,
			SubmittedAt:  submittedAt(abs, hasAbs, ageText),
			CommentCount: commentCount,
			CommentsURL:  commentsURL,
		})
	}

	p.logger.Debug("listing parsed", "rows", len(rows), "stories", len(records))
	return records, nil
}

// commentAnchor mirrors CSSListingParser.commentAnchor using XPath.
func (p *XPathListingParser) commentAnchor(sub *html.Node) (int, string) {
	anchors, err := htmlquery.QueryAll(sub, ".//a[starts-with(@href, 'item?id=')]")
	if err != nil {
		return 0, ""
	}

	var count int
	var link string
	for _, a := range anchors {
		text := strings.TrimSpace(htmlquery.InnerText(a))
		if strings.Contains(text, "comment") || strings.EqualFold(text, "discuss") {
			count = parseCommentCount(text)
			link = resolveLink(p.base, htmlquery.SelectAttr(a, "href"))
		}
	}
	return count, link
}

func (p *XPathListingParser) queryOne(ctx *html.Node, expr string) *html.Node {
	node, err := htmlquery.Query(ctx, expr)
	if err != nil {
		p.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return nil
	}
	return node
}
