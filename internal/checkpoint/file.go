package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/miner"
)

// FileStore persists checkpoints as a JSON file. Writes go through a
// temporary file and a rename so an interrupted save never corrupts the
// previous checkpoint.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed checkpoint store
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint file path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

// Save writes the session snapshot to disk
func (s *FileStore) Save(ctx context.Context, session *miner.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to encode checkpoint")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to write checkpoint file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to replace checkpoint file")
	}
	return nil
}

// Load reads the last saved session. A missing file returns nil without an
// error so a fresh run starts cleanly.
func (s *FileStore) Load(ctx context.Context) (*miner.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to read checkpoint file")
	}

	var session miner.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to decode checkpoint file")
	}
	return &session, nil
}
