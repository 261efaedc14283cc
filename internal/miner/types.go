package miner

import (
	"context"
	"time"

	"alphaminer/internal/brain"
)

// DatasetSelector chooses the next dataset to mine. A selection failure is
// fatal to the session.
type DatasetSelector interface {
	SelectDataset(ctx context.Context) (*brain.Dataset, error)
}

// Generator produces a factor expression for a dataset. When prior attempts
// are passed, the generator refines them using their scores as feedback.
type Generator interface {
	Generate(ctx context.Context, dataset *brain.Dataset, prior []Attempt) (string, error)
}

// Evaluator backtests an expression and returns its evaluation. Failures
// are transient and count against the candidate's iteration budget.
type Evaluator interface {
	Evaluate(ctx context.Context, expression, datasetID string) (*EvaluationResult, error)
}

// FactorSink consumes accepted candidates
type FactorSink interface {
	Accept(ctx context.Context, candidate *FactorCandidate) error
}

// CheckpointStore persists session progress for resume-after-interruption
type CheckpointStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context) (*Session, error)
}

// EvaluationResult is the evaluation of one expression. Immutable once
// produced.
type EvaluationResult struct {
	AlphaID string  `json:"alpha_id"`
	Sharpe  float64 `json:"sharpe"`
	Passed  bool    `json:"passed"`
}

// Attempt is a prior expression and its score, fed back to the generator
type Attempt struct {
	Expression string  `json:"expression"`
	Sharpe     float64 `json:"sharpe"`
	Passed     bool    `json:"passed"`
}

// FactorCandidate is one candidate factor. Each candidate is owned by
// exactly one loop iteration; it only ever gains an evaluation result.
type FactorCandidate struct {
	ID         string            `json:"id"`
	DatasetID  string            `json:"dataset_id"`
	Expression string            `json:"expression"`
	Attempt    int               `json:"attempt"`
	Result     *EvaluationResult `json:"result,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
