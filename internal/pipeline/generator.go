package pipeline

import (
	"context"
	"regexp"
	"sync"

	"alphaminer/internal/ai"
	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// FieldCatalog provides the operators and data fields used to build prompts
type FieldCatalog interface {
	ListOperators(ctx context.Context) ([]brain.Operator, error)
	GetDataFields(ctx context.Context, datasetID string) ([]brain.DataField, error)
}

// FactorAdvisor proposes and refines factor expressions
type FactorAdvisor interface {
	GenerateFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField) (*ai.FactorProposal, error)
	RefineFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField, prior []ai.Attempt) (*ai.FactorProposal, error)
}

// FactorGenerator produces candidate expressions for the mining loop. It
// caches the operator list for the session and the field list per dataset,
// and normalizes field casing in returned expressions so they match the
// platform's canonical field identifiers.
type FactorGenerator struct {
	catalog FieldCatalog
	advisor FactorAdvisor

	mu        sync.Mutex
	operators []string
	fields    map[string][]brain.DataField
}

// NewFactorGenerator creates a generator backed by the platform catalog and
// an expression advisor
func NewFactorGenerator(catalog FieldCatalog, advisor FactorAdvisor) *FactorGenerator {
	return &FactorGenerator{
		catalog: catalog,
		advisor: advisor,
		fields:  make(map[string][]brain.DataField),
	}
}

// Generate proposes an expression for the dataset. Prior attempts switch the
// advisor into refinement, feeding back each attempt's score.
func (g *FactorGenerator) Generate(ctx context.Context, dataset *brain.Dataset, prior []miner.Attempt) (string, error) {
	operators, err := g.loadOperators(ctx)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeGeneration, "failed to load operators")
	}
	fields, err := g.loadFields(ctx, dataset.ID)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeGeneration, "failed to load data fields")
	}

	var proposal *ai.FactorProposal
	if len(prior) == 0 {
		proposal, err = g.advisor.GenerateFactor(ctx, *dataset, operators, fields)
	} else {
		proposal, err = g.advisor.RefineFactor(ctx, *dataset, operators, fields, toAdvisorAttempts(prior))
	}
	if err != nil {
		return "", err
	}

	expression := NormalizeFieldCase(proposal.Expression, fields)
	if expression != proposal.Expression {
		logging.WithField("expression", expression).Debug("Normalized field casing in expression")
	}
	return expression, nil
}

func (g *FactorGenerator) loadOperators(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.operators != nil {
		return g.operators, nil
	}

	operators, err := g.catalog.ListOperators(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(operators))
	for _, op := range operators {
		names = append(names, op.Name)
	}
	g.operators = names
	return names, nil
}

func (g *FactorGenerator) loadFields(ctx context.Context, datasetID string) ([]brain.DataField, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fields, ok := g.fields[datasetID]; ok {
		return fields, nil
	}

	fields, err := g.catalog.GetDataFields(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	g.fields[datasetID] = fields
	return fields, nil
}

func toAdvisorAttempts(prior []miner.Attempt) []ai.Attempt {
	out := make([]ai.Attempt, 0, len(prior))
	for _, attempt := range prior {
		out = append(out, ai.Attempt{
			Expression: attempt.Expression,
			Sharpe:     attempt.Sharpe,
			Passed:     attempt.Passed,
		})
	}
	return out
}

// NormalizeFieldCase rewrites field identifiers in an expression to their
// canonical platform casing. Language models often emit field names in the
// wrong case, which the simulation engine rejects.
func NormalizeFieldCase(expression string, fields []brain.DataField) string {
	for _, field := range fields {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(field.ID) + `\b`)
		if err != nil {
			continue
		}
		expression = pattern.ReplaceAllString(expression, field.ID)
	}
	return expression
}
