package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hnsnap/hnsnap/internal/types"
)

// CommentTreeParser extracts a story's nested comment tree. The page
// renders the tree flat, one row per comment, with nesting encoded in
// each row's indent cell.
type CommentTreeParser struct {
	logger *slog.Logger
}

// NewCommentTreeParser creates a comment tree parser.
func NewCommentTreeParser(logger *slog.Logger) *CommentTreeParser {
	return &CommentTreeParser{
		logger: logger.With("component", "comment_parser"),
	}
}

type flatComment struct {
	author string
	text   string
	depth  int
}

// ParseComments implements CommentParser. A page with no comment table
// yields an empty slice: a story may legitimately have zero comments.
func (p *CommentTreeParser) ParseComments(resp *types.Response) ([]types.CommentNode, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	tree := doc.Find("table.comment-tree")
	if tree.Length() == 0 {
		return []types.CommentNode{}, nil
	}

	var flats []flatComment
	tree.Find("tr.athing.comtr").Each(func(i int, row *goquery.Selection) {
		// The body is a span.commtext on most pages, a div.commtext on
		// some; match on the class alone.
		text := commentText(row.Find(".commtext").First())
		if text == "" {
			// Deleted/dead comments render without a commtext node.
			// Their children re-attach one level up via depth clamping.
			return
		}
		flats = append(flats, flatComment{
			author: strings.TrimSpace(row.Find("a.hnuser").First().Text()),
			text:   text,
			depth:  rowDepth(row),
		})
	})

	roots := buildTree(flats)
	p.logger.Debug("comments parsed",
		"url", resp.Request.URLString(),
		"total", len(flats),
		"top_level", len(roots),
	)
	return roots, nil
}

// rowDepth reads the nesting level from the row's indent cell. Newer
// markup carries an indent attribute; older markup encodes it as a spacer
// image whose width is 40px per level.
func rowDepth(row *goquery.Selection) int {
	ind := row.Find("td.ind").First()
	if v, ok := ind.Attr("indent"); ok {
		return parseLeadingInt(v)
	}
	if w, ok := ind.Find("img").First().Attr("width"); ok {
		return parseLeadingInt(w) / 40
	}
	return 0
}

// buildTree nests the flat row sequence using a depth stack. A depth jump
// of more than one level is clamped so each child sits exactly one level
// below its parent.
func buildTree(flats []flatComment) []types.CommentNode {
	roots := []types.CommentNode{}
	var stack []*types.CommentNode

	for _, f := range flats {
		depth := f.depth
		if depth > len(stack) {
			depth = len(stack)
		}
		stack = stack[:depth]

		node := types.CommentNode{
			Author:   f.author,
			Text:     f.text,
			Depth:    depth,
			Children: []types.CommentNode{},
		}

		if depth == 0 {
			roots = append(roots, node)
			stack = append(stack, &roots[len(roots)-1])
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, node)
			stack = append(stack, &parent.Children[len(parent.Children)-1])
		}
	}

	return roots
}

// commentText renders the comment body as plain text, separating
// paragraphs with blank lines. Links are kept as their text.
func commentText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "p" && b.Len() > 0 {
				b.WriteString("\n\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}
