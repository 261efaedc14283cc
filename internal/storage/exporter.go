package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// Exporter writes accepted factors to a timestamped JSON file, one file per
// mining run. The file is rewritten on every acceptance so an interrupted
// run still leaves the factors accepted so far on disk.
type Exporter struct {
	dir  string
	path string

	mu      sync.Mutex
	factors []*miner.FactorCandidate
}

// NewExporter creates an exporter writing into dir
func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	filename := fmt.Sprintf("factors_%s.json", time.Now().Format("20060102_150405"))
	return &Exporter{
		dir:  dir,
		path: filepath.Join(dir, filename),
	}, nil
}

// Path returns the export file path for this run
func (e *Exporter) Path() string {
	return e.path
}

// Accept appends the candidate and rewrites the export file
func (e *Exporter) Accept(ctx context.Context, candidate *miner.FactorCandidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.factors = append(e.factors, candidate)

	data, err := json.MarshalIndent(e.factors, "", "  ")
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeExport, "failed to encode factors")
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeExport, "failed to write export file")
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return apperrors.WrapError(err, apperrors.ErrCodeExport, "failed to replace export file")
	}

	logging.WithField("path", e.path).Debug("Exported accepted factors")
	return nil
}
