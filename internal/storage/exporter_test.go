package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alphaminer/internal/miner"
)

func candidate(id, expression string, sharpe float64) *miner.FactorCandidate {
	return &miner.FactorCandidate{
		ID:         id,
		DatasetID:  "fundamental6",
		Expression: expression,
		Attempt:    1,
		Result:     &miner.EvaluationResult{AlphaID: "A" + id, Sharpe: sharpe, Passed: true},
		CreatedAt:  time.Now(),
	}
}

func TestExporterWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	name := filepath.Base(exporter.Path())
	if !strings.HasPrefix(name, "factors_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("unexpected export filename %s", name)
	}

	if err := exporter.Accept(context.Background(), candidate("1", "rank(close)", 1.8)); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := exporter.Accept(context.Background(), candidate("2", "ts_rank(volume, 20)", 2.1)); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	data, err := os.ReadFile(exporter.Path())
	if err != nil {
		t.Fatalf("failed to read export file: %v", err)
	}

	var factors []*miner.FactorCandidate
	if err := json.Unmarshal(data, &factors); err != nil {
		t.Fatalf("export file is not valid JSON: %v", err)
	}
	if len(factors) != 2 {
		t.Fatalf("expected 2 factors in export, got %d", len(factors))
	}
	if factors[0].Expression != "rank(close)" || factors[1].Expression != "ts_rank(volume, 20)" {
		t.Errorf("factors out of order: %+v", factors)
	}
	if factors[1].Result == nil || factors[1].Result.Sharpe != 2.1 {
		t.Errorf("evaluation result lost in export: %+v", factors[1])
	}
}

func TestExporterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "nested")
	exporter, err := NewExporter(dir)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	if err := exporter.Accept(context.Background(), candidate("1", "rank(close)", 1.6)); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := os.Stat(exporter.Path()); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

type recordingSink struct {
	ids  []string
	fail bool
}

func (s *recordingSink) Accept(ctx context.Context, c *miner.FactorCandidate) error {
	if s.fail {
		return os.ErrPermission
	}
	s.ids = append(s.ids, c.ID)
	return nil
}

func TestCompositeSinkSurvivesFailingSink(t *testing.T) {
	healthy := &recordingSink{}
	broken := &recordingSink{fail: true}
	sink := NewCompositeSink(broken, healthy)

	if err := sink.Accept(context.Background(), candidate("1", "rank(close)", 1.7)); err != nil {
		t.Fatalf("CompositeSink should absorb sink failures: %v", err)
	}
	if len(healthy.ids) != 1 || healthy.ids[0] != "1" {
		t.Errorf("healthy sink did not receive the candidate: %+v", healthy.ids)
	}
}
