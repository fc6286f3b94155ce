package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hnsnap/hnsnap/internal/types"
)

// JSONStorage writes the snapshot as an indented JSON array. The write
// goes to a temp file in the target directory followed by a rename, so a
// failed run never clobbers an existing output file.
type JSONStorage struct {
	path   string
	logger *slog.Logger
}

// NewJSONStorage creates a JSON file storage for the given output path.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

// Store writes the snapshot, replacing any previous file atomically.
func (s *JSONStorage) Store(snapshot *types.Snapshot) error {
	if err := writeAtomic(s.path, snapshot, true); err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	s.logger.Info("JSON written", "path", s.path, "stories", len(snapshot.Stories))
	return nil
}

func (s *JSONStorage) Close() error { return nil }

// JSONLStorage writes one story object per line.
type JSONLStorage struct {
	path   string
	logger *slog.Logger
}

// NewJSONLStorage creates a JSONL file storage for the given output path.
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &JSONLStorage{
		path:   outputPath,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

// Store writes the snapshot, one story per line, atomically.
func (s *JSONLStorage) Store(snapshot *types.Snapshot) error {
	if err := writeAtomic(s.path, snapshot, false); err != nil {
		return &types.StorageError{Backend: "jsonl", Err: err}
	}
	s.logger.Info("JSONL written", "path", s.path, "stories", len(snapshot.Stories))
	return nil
}

func (s *JSONLStorage) Close() error { return nil }

// writeAtomic encodes the snapshot into a temp file next to path and
// renames it over the target.
func writeAtomic(path string, snapshot *types.Snapshot, asArray bool) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name()) // no-op after successful rename
	}()

	enc := json.NewEncoder(tmp)
	if asArray {
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	} else {
		for _, story := range snapshot.Stories {
			if err := enc.Encode(story); err != nil {
				return fmt.Errorf("encode JSONL: %w", err)
			}
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// NewFileStorage creates the appropriate file-based storage by type.
func NewFileStorage(storageType, outputPath string, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "json":
		return NewJSONStorage(outputPath, logger)
	case "jsonl":
		return NewJSONLStorage(outputPath, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
