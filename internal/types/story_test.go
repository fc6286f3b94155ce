package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{Stories: []StoryRecord{
		{
			Rank:         1,
			Title:        "Show HN: A thing I built",
			URL:          "https://example.com/launch",
			Points:       312,
			Author:       "alice",
			SubmittedAt:  "2024-03-01T15:04:05Z",
			CommentCount: 2,
			Comments: []CommentNode{
				{
					Author: "dana",
					Text:   "Impressive work.",
					Depth:  0,
					Children: []CommentNode{
						{Author: "erin", Text: "Agreed.", Depth: 1, Children: []CommentNode{}},
					},
				},
			},
		},
		{
			Rank:         2,
			Title:        "Ask HN: Self post",
			URL:          "https://news.ycombinator.com/item?id=39000003",
			Points:       57,
			Author:       "bob",
			SubmittedAt:  "2024-03-01T08:30:00Z",
			CommentCount: 0,
			Comments:     []CommentNode{},
		},
	}}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), "[") {
		t.Fatalf("snapshot must serialize as a bare array, got %s", data[:1])
	}

	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.Stories) != 2 {
		t.Fatalf("expected 2 stories after round trip, got %d", len(decoded.Stories))
	}
	if decoded.Stories[0].Title != snap.Stories[0].Title {
		t.Errorf("title mismatch: %q", decoded.Stories[0].Title)
	}
	if len(decoded.Stories[0].Comments) != 1 {
		t.Fatalf("expected 1 root comment, got %d", len(decoded.Stories[0].Comments))
	}
	if decoded.Stories[0].Comments[0].Children[0].Author != "erin" {
		t.Errorf("nested comment lost in round trip")
	}
}

func TestSnapshotMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(&Snapshot{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("empty snapshot must serialize as [], got %s", data)
	}
}

func TestSnapshotDeterministicBytes(t *testing.T) {
	a, err := json.Marshal(sampleSnapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(sampleSnapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Error("identical snapshots must produce identical bytes")
	}
}

func TestSnapshotCommentsURLExcluded(t *testing.T) {
	snap := &Snapshot{Stories: []StoryRecord{{
		Rank:        1,
		Title:       "t",
		CommentsURL: "https://news.ycombinator.com/item?id=1",
		Comments:    []CommentNode{},
	}}}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "item?id=1") {
		t.Error("comments URL must not appear in serialized output")
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := sampleSnapshot().Validate(30); err != nil {
		t.Errorf("valid snapshot rejected: %v", err)
	}

	overLimit := sampleSnapshot()
	if err := overLimit.Validate(1); err == nil {
		t.Error("expected error when story count exceeds the limit")
	}

	badRank := sampleSnapshot()
	badRank.Stories[1].Rank = 5
	if err := badRank.Validate(30); err == nil {
		t.Error("expected error for non-contiguous ranks")
	}

	badDepth := sampleSnapshot()
	badDepth.Stories[0].Comments[0].Children[0].Depth = 3
	if err := badDepth.Validate(30); err == nil {
		t.Error("expected error for child depth not parent+1")
	}
}

func TestSnapshotCommentTotal(t *testing.T) {
	if got := sampleSnapshot().CommentTotal(); got != 2 {
		t.Errorf("expected 2 total comments, got %d", got)
	}
	if got := (&Snapshot{}).CommentTotal(); got != 0 {
		t.Errorf("expected 0 for empty snapshot, got %d", got)
	}
}
