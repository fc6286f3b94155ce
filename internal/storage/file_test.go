package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnsnap/hnsnap/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testSnapshot() *types.Snapshot {
	return &types.Snapshot{Stories: []types.StoryRecord{
		{
			Rank:         1,
			Title:        "First story",
			URL:          "https://example.com/first",
			Points:       120,
			Author:       "pat",
			SubmittedAt:  "2024-03-01T12:00:00Z",
			CommentCount: 1,
			Comments: []types.CommentNode{
				{Author: "quinn", Text: "Nice launch.", Depth: 0, Children: []types.CommentNode{}},
			},
		},
		{
			Rank:     2,
			Title:    "Second story",
			URL:      "https://example.com/second",
			Points:   48,
			Author:   "sam",
			Comments: []types.CommentNode{},
		},
	}}
}

func TestJSONStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(testSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded types.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Stories, 2)
	assert.Equal(t, "First story", decoded.Stories[0].Title)
	assert.Equal(t, "quinn", decoded.Stories[0].Comments[0].Author)
}

func TestJSONStorageOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"rank":1,"title":"stale"}]`), 0o644))

	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), "First story")
}

func TestJSONStorageLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStorage(filepath.Join(dir, "output.json"), testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "output.json", entries[0].Name())
}

func TestJSONStorageEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(&types.Snapshot{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestJSONLStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.jsonl")
	s, err := NewJSONLStorage(path, testLogger)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(testSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var story types.StoryRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &story))
	assert.Equal(t, 1, story.Rank)
	assert.Equal(t, "First story", story.Title)
}

func TestNewFileStorage(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStorage("json", filepath.Join(dir, "a.json"), testLogger)
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	s, err = NewFileStorage("jsonl", filepath.Join(dir, "a.jsonl"), testLogger)
	require.NoError(t, err)
	assert.Equal(t, "jsonl", s.Name())

	_, err = NewFileStorage("csv", filepath.Join(dir, "a.csv"), testLogger)
	assert.Error(t, err)
}
