package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// Simulator backtests an expression and exposes the resulting alpha's checks
type Simulator interface {
	Simulate(ctx context.Context, expression string) (string, error)
	CheckAlpha(ctx context.Context, alphaID string) (*brain.AlphaCheck, error)
}

// SimulationEvaluator scores expressions by running a platform backtest and
// reading the resulting alpha's check results
type SimulationEvaluator struct {
	simulator Simulator
}

// NewSimulationEvaluator creates a backtest-backed evaluator
func NewSimulationEvaluator(simulator Simulator) *SimulationEvaluator {
	return &SimulationEvaluator{simulator: simulator}
}

// Evaluate runs a backtest for the expression and returns its score
func (e *SimulationEvaluator) Evaluate(ctx context.Context, expression, datasetID string) (*miner.EvaluationResult, error) {
	alphaID, err := e.simulator.Simulate(ctx, expression)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeSimulation, "backtest failed")
	}

	check, err := e.simulator.CheckAlpha(ctx, alphaID)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeAlphaCheck, "alpha check failed")
	}

	logging.WithFields(logrus.Fields{
		"alpha_id": alphaID,
		"sharpe":   check.Sharpe,
		"passed":   check.Passed,
	}).Debug("Evaluated expression")

	return &miner.EvaluationResult{
		AlphaID: alphaID,
		Sharpe:  check.Sharpe,
		Passed:  check.Passed,
	}, nil
}
