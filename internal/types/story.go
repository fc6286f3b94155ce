package types

import (
	"encoding/json"
	"fmt"
)

// StoryRecord is a single front-page story with its parsed comment tree.
// Records are immutable once assembled by the scraper.
type StoryRecord struct {
	// Rank is the story's position on the listing page, starting at 1.
	Rank int `json:"rank"`

	// Title is the story headline.
	Title string `json:"title"`

	// URL is the story link, absolute. Relative item?id= links are
	// resolved against the site base before the record is built.
	URL string `json:"url"`

	// Points is the story score at scrape time.
	Points int `json:"points"`

	// Author is the submitting user.
	Author string `json:"author"`

	// SubmittedAt is the submission time: RFC3339 when the page carries
	// an absolute timestamp, otherwise the raw relative string.
	SubmittedAt string `json:"submitted_at"`

	// CommentCount is the comment total shown on the listing page.
	CommentCount int `json:"comment_count"`

	// Comments holds the nested comment tree in page display order.
	Comments []CommentNode `json:"comments"`

	// CommentsURL is the story's comment page, kept out of the output.
	CommentsURL string `json:"-"`
}

// CommentNode is one comment and its nested replies.
type CommentNode struct {
	Author   string        `json:"author"`
	Text     string        `json:"text"`
	Depth    int           `json:"depth"`
	Children []CommentNode `json:"children"`
}

// Snapshot is the full rank-ordered result of one run. It serializes as
// a bare JSON array of stories; the scrape timestamp is deliberately not
// part of the output so identical input pages produce identical bytes.
type Snapshot struct {
	Stories []StoryRecord
}

// MarshalJSON encodes the snapshot as the story array.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s.Stories == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Stories)
}

// UnmarshalJSON decodes a story array into the snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.Stories)
}

// Validate checks the snapshot's structural invariants: at most max
// stories, ranks contiguous from 1, and well-formed comment nesting.
func (s *Snapshot) Validate(max int) error {
	if len(s.Stories) > max {
		return fmt.Errorf("snapshot has %d stories, limit is %d", len(s.Stories), max)
	}
	for i, story := range s.Stories {
		if story.Rank != i+1 {
			return fmt.Errorf("story at position %d has rank %d", i, story.Rank)
		}
		for _, c := range story.Comments {
			if err := validateNode(c, 0); err != nil {
				return fmt.Errorf("story rank %d: %w", story.Rank, err)
			}
		}
	}
	return nil
}

func validateNode(n CommentNode, depth int) error {
	if n.Depth != depth {
		return fmt.Errorf("comment by %q has depth %d, expected %d", n.Author, n.Depth, depth)
	}
	for _, child := range n.Children {
		if err := validateNode(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// CommentTotal counts all comments in the snapshot, nested included.
func (s *Snapshot) CommentTotal() int {
	var total int
	for _, story := range s.Stories {
		for _, c := range story.Comments {
			total += countNodes(c)
		}
	}
	return total
}

func countNodes(n CommentNode) int {
	total := 1
	for _, child := range n.Children {
		total += countNodes(child)
	}
	return total
}
