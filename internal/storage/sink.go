package storage

import (
	"context"

	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// CompositeSink fans accepted factors out to several sinks. A failing sink
// is logged and skipped so one broken destination never loses the others'
// copies.
type CompositeSink struct {
	sinks []miner.FactorSink
}

// NewCompositeSink creates a sink writing to all given sinks
func NewCompositeSink(sinks ...miner.FactorSink) *CompositeSink {
	return &CompositeSink{sinks: sinks}
}

// Accept forwards the candidate to every sink
func (s *CompositeSink) Accept(ctx context.Context, candidate *miner.FactorCandidate) error {
	for _, sink := range s.sinks {
		if err := sink.Accept(ctx, candidate); err != nil {
			logging.WithError(err).WithField("candidate_id", candidate.ID).
				Warn("Factor sink failed")
		}
	}
	return nil
}
