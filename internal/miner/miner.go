package miner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
	"alphaminer/internal/monitor"
)

// Config represents the refinement loop budgets
type Config struct {
	MaxIterations int
	MinSharpe     float64
	MaxFactors    int
	SaveInterval  int
}

// Miner runs the iterative factor refinement loop: select a dataset,
// generate a candidate, evaluate it, then accept, refine or abandon.
type Miner struct {
	config    Config
	selector  DatasetSelector
	generator Generator
	evaluator Evaluator
	sink      FactorSink
	store     CheckpointStore
	metrics   *monitor.Metrics

	mu      sync.RWMutex
	session *Session
}

// Option configures optional miner collaborators
type Option func(*Miner)

// WithSink attaches an accepted-candidate consumer
func WithSink(sink FactorSink) Option {
	return func(m *Miner) { m.sink = sink }
}

// WithCheckpointStore attaches a checkpoint store
func WithCheckpointStore(store CheckpointStore) Option {
	return func(m *Miner) { m.store = store }
}

// WithMetrics attaches a metrics collector
func WithMetrics(metrics *monitor.Metrics) Option {
	return func(m *Miner) { m.metrics = metrics }
}

// NewMiner creates a new miner
func NewMiner(cfg Config, selector DatasetSelector, generator Generator, evaluator Evaluator, opts ...Option) (*Miner, error) {
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", cfg.MaxIterations)
	}
	if cfg.MaxFactors < 1 {
		return nil, fmt.Errorf("max factors must be at least 1, got %d", cfg.MaxFactors)
	}
	if cfg.SaveInterval < 1 {
		cfg.SaveInterval = 1
	}
	if selector == nil || generator == nil || evaluator == nil {
		return nil, fmt.Errorf("selector, generator and evaluator are required")
	}

	m := &Miner{
		config:    cfg,
		selector:  selector,
		generator: generator,
		evaluator: evaluator,
		session:   NewSession(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Restore replaces the session state with a loaded checkpoint snapshot.
// Must be called before Mine.
func (m *Miner) Restore(session *Session) {
	if session == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	logging.WithFields(logrus.Fields{
		"session_id": session.ID,
		"accepted":   session.Accepted,
	}).Info("Restored session from checkpoint")
}

// SessionSnapshot returns a copy of the current session state
func (m *Miner) SessionSnapshot() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// Checkpoint persists the current session state
func (m *Miner) Checkpoint(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, m.SessionSnapshot()); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to save checkpoint")
	}
	m.metrics.RecordCheckpoint()
	return nil
}

// Mine runs the refinement loop until max_factors candidates are accepted,
// the dataset selector fails fatally, or the context is cancelled. The
// returned slice contains only candidates whose score met min_sharpe, in
// acceptance order.
func (m *Miner) Mine(ctx context.Context) ([]*FactorCandidate, error) {
	var emitted []*FactorCandidate

	for m.accepted() < m.config.MaxFactors {
		if err := ctx.Err(); err != nil {
			m.checkpointQuietly(ctx)
			return emitted, err
		}

		dataset, err := m.selector.SelectDataset(ctx)
		if err != nil {
			// Dataset selection failure halts the session; the last
			// checkpoint stays valid for a future resume.
			m.metrics.RecordCollaboratorError("selector")
			m.checkpointQuietly(ctx)
			return emitted, apperrors.WrapError(err, apperrors.ErrCodeDatasetSelection, "dataset selection failed")
		}

		candidate, err := m.mineDataset(ctx, dataset)
		if err != nil {
			m.checkpointQuietly(ctx)
			return emitted, err
		}
		if candidate == nil {
			continue // abandoned, move to the next dataset
		}

		emitted = append(emitted, candidate)

		if err := m.emit(ctx, candidate); err != nil {
			logging.WithError(err).WithField("candidate_id", candidate.ID).
				Warn("Factor sink rejected accepted candidate")
		}

		if m.accepted()%m.config.SaveInterval == 0 {
			if err := m.Checkpoint(ctx); err != nil {
				logging.WithError(err).Warn("Periodic checkpoint failed")
			}
		}
	}

	if err := m.Checkpoint(ctx); err != nil {
		logging.WithError(err).Warn("Final checkpoint failed")
	}

	logging.WithFields(logrus.Fields{
		"accepted":  m.accepted(),
		"abandoned": m.abandoned(),
	}).Info("Mining session complete")
	return emitted, nil
}

// mineDataset runs the bounded refinement loop for one dataset. It returns
// the accepted candidate, or nil when the iteration budget was exhausted.
// Only fatal errors and context cancellation propagate.
func (m *Miner) mineDataset(ctx context.Context, dataset *brain.Dataset) (*FactorCandidate, error) {
	var prior []Attempt

	log := logging.WithField("dataset", dataset.ID)

	for attempt := 1; attempt <= m.config.MaxIterations; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.setProgress(dataset.ID, attempt)
		m.metrics.RecordAttempt(dataset.ID)

		expression, err := m.generator.Generate(ctx, dataset, prior)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if apperrors.IsFatal(err) {
				return nil, err
			}
			m.metrics.RecordCollaboratorError("generator")
			log.WithError(err).WithField("attempt", attempt).Warn("Generation failed, counting as failed iteration")
			continue
		}

		if m.alreadyAccepted(dataset.ID, expression) {
			log.WithField("expression", expression).Info("Skipping already accepted expression")
			continue
		}

		result, err := m.evaluator.Evaluate(ctx, expression, dataset.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if apperrors.IsFatal(err) {
				return nil, err
			}
			m.metrics.RecordCollaboratorError("evaluator")
			log.WithError(err).WithFields(logrus.Fields{
				"attempt":    attempt,
				"expression": expression,
			}).Warn("Evaluation failed, counting as failed iteration")
			continue
		}

		m.metrics.ObserveSharpe(result.Sharpe)
		prior = append(prior, Attempt{Expression: expression, Sharpe: result.Sharpe, Passed: result.Passed})

		if result.Sharpe >= m.config.MinSharpe {
			candidate := &FactorCandidate{
				ID:         uuid.NewString(),
				DatasetID:  dataset.ID,
				Expression: expression,
				Attempt:    attempt,
				Result:     result,
				CreatedAt:  time.Now(),
			}
			m.markAccepted(dataset.ID, expression)
			m.metrics.RecordAccepted(dataset.ID)
			m.metrics.SetSessionAccepted(m.accepted())
			log.WithFields(logrus.Fields{
				"expression": expression,
				"sharpe":     result.Sharpe,
				"attempt":    attempt,
			}).Info("Candidate accepted")
			return candidate, nil
		}

		log.WithFields(logrus.Fields{
			"expression": expression,
			"sharpe":     result.Sharpe,
			"attempt":    attempt,
			"min_sharpe": m.config.MinSharpe,
		}).Info("Candidate below threshold, refining")
	}

	m.markAbandoned()
	m.metrics.RecordAbandoned(dataset.ID)
	log.WithField("max_iterations", m.config.MaxIterations).
		Info("Iteration budget exhausted, abandoning candidate")
	return nil, nil
}

// emit hands an accepted candidate to the sink
func (m *Miner) emit(ctx context.Context, candidate *FactorCandidate) error {
	if m.sink == nil {
		return nil
	}
	return m.sink.Accept(ctx, candidate)
}

// checkpointQuietly saves a checkpoint on the way out of the loop,
// logging instead of masking the original failure
func (m *Miner) checkpointQuietly(ctx context.Context) {
	// Saving must not be lost to the same cancellation that stops mining
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := m.Checkpoint(ctx); err != nil {
		logging.WithError(err).Warn("Exit checkpoint failed")
	}
}

func (m *Miner) accepted() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Accepted
}

func (m *Miner) abandoned() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Abandoned
}

func (m *Miner) setProgress(datasetID string, attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.CurrentDataset = datasetID
	m.session.CurrentAttempt = attempt
	m.session.UpdatedAt = time.Now()
}

func (m *Miner) alreadyAccepted(datasetID, expression string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.AlreadyAccepted(datasetID, expression)
}

func (m *Miner) markAccepted(datasetID, expression string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.MarkAccepted(datasetID, expression)
}

func (m *Miner) markAbandoned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Abandoned++
	m.session.UpdatedAt = time.Now()
}
