package pipeline

import (
	"context"
	"fmt"
	"testing"

	"alphaminer/internal/ai"
	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/miner"
)

type stubCatalog struct {
	datasets      []brain.Dataset
	datasetsErr   error
	operators     []brain.Operator
	fields        map[string][]brain.DataField
	listCalls     int
	operatorCalls int
	fieldCalls    int
}

func (c *stubCatalog) ListDatasets(ctx context.Context) ([]brain.Dataset, error) {
	c.listCalls++
	return c.datasets, c.datasetsErr
}

func (c *stubCatalog) ListOperators(ctx context.Context) ([]brain.Operator, error) {
	c.operatorCalls++
	return c.operators, nil
}

func (c *stubCatalog) GetDataFields(ctx context.Context, datasetID string) ([]brain.DataField, error) {
	c.fieldCalls++
	return c.fields[datasetID], nil
}

type stubAdvisor struct {
	selection   *ai.DatasetSelection
	selectErr   error
	expressions []string
	refineCalls int
	lastPrior   []ai.Attempt
}

func (a *stubAdvisor) SelectDataset(ctx context.Context, datasets []brain.Dataset) (*ai.DatasetSelection, error) {
	return a.selection, a.selectErr
}

func (a *stubAdvisor) nextExpression() (*ai.FactorProposal, error) {
	if len(a.expressions) == 0 {
		return nil, fmt.Errorf("no scripted expressions left")
	}
	expr := a.expressions[0]
	a.expressions = a.expressions[1:]
	return &ai.FactorProposal{Expression: expr}, nil
}

func (a *stubAdvisor) GenerateFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField) (*ai.FactorProposal, error) {
	return a.nextExpression()
}

func (a *stubAdvisor) RefineFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField, prior []ai.Attempt) (*ai.FactorProposal, error) {
	a.refineCalls++
	a.lastPrior = prior
	return a.nextExpression()
}

func TestCatalogSelectorUsesAdvisorChoice(t *testing.T) {
	catalog := &stubCatalog{datasets: []brain.Dataset{
		{ID: "pv1", Name: "Price Volume"},
		{ID: "fundamental6", Name: "Fundamentals"},
	}}
	advisor := &stubAdvisor{selection: &ai.DatasetSelection{SelectedDataset: "fundamental6", Reason: "rich field set"}}

	selector := NewCatalogSelector(catalog, advisor)
	dataset, err := selector.SelectDataset(context.Background())
	if err != nil {
		t.Fatalf("SelectDataset failed: %v", err)
	}
	if dataset.ID != "fundamental6" {
		t.Errorf("expected advisor's choice, got %s", dataset.ID)
	}
	if catalog.listCalls != 1 {
		t.Errorf("expected 1 catalog load, got %d", catalog.listCalls)
	}
}

func TestCatalogSelectorNeverRepeatsDataset(t *testing.T) {
	catalog := &stubCatalog{datasets: []brain.Dataset{{ID: "d1"}, {ID: "d2"}}}
	advisor := &stubAdvisor{selection: &ai.DatasetSelection{SelectedDataset: "d1"}}

	selector := NewCatalogSelector(catalog, advisor)

	first, err := selector.SelectDataset(context.Background())
	if err != nil {
		t.Fatalf("first selection failed: %v", err)
	}
	// Advisor keeps asking for d1, which was already served
	second, err := selector.SelectDataset(context.Background())
	if err != nil {
		t.Fatalf("second selection failed: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("dataset %s served twice", first.ID)
	}

	// Catalog exhausted
	if _, err := selector.SelectDataset(context.Background()); err == nil {
		t.Error("expected an error once all datasets are served")
	}
	if catalog.listCalls != 1 {
		t.Errorf("catalog should be loaded once, got %d loads", catalog.listCalls)
	}
}

func TestCatalogSelectorFallsBackOnAdvisorError(t *testing.T) {
	catalog := &stubCatalog{datasets: []brain.Dataset{{ID: "d1"}, {ID: "d2"}}}
	advisor := &stubAdvisor{selectErr: fmt.Errorf("model unavailable")}

	selector := NewCatalogSelector(catalog, advisor)
	dataset, err := selector.SelectDataset(context.Background())
	if err != nil {
		t.Fatalf("SelectDataset failed: %v", err)
	}
	if dataset.ID != "d1" {
		t.Errorf("expected catalog order fallback, got %s", dataset.ID)
	}
}

func TestCatalogSelectorFatalOnCatalogError(t *testing.T) {
	catalog := &stubCatalog{datasetsErr: apperrors.NewAppError(apperrors.ErrCodeAuth, "unauthorized", nil)}
	selector := NewCatalogSelector(catalog, &stubAdvisor{})

	_, err := selector.SelectDataset(context.Background())
	if err == nil {
		t.Fatal("expected catalog failure to surface")
	}
}

func TestFactorGeneratorCachesCatalog(t *testing.T) {
	catalog := &stubCatalog{
		operators: []brain.Operator{{Name: "rank"}, {Name: "ts_rank"}},
		fields: map[string][]brain.DataField{
			"d1": {{ID: "close"}, {ID: "volume"}},
		},
	}
	advisor := &stubAdvisor{expressions: []string{"rank(close)", "ts_rank(volume, 20)"}}

	generator := NewFactorGenerator(catalog, advisor)
	dataset := &brain.Dataset{ID: "d1"}

	first, err := generator.Generate(context.Background(), dataset, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if first != "rank(close)" {
		t.Errorf("unexpected expression %q", first)
	}

	prior := []miner.Attempt{{Expression: first, Sharpe: 0.8}}
	second, err := generator.Generate(context.Background(), dataset, prior)
	if err != nil {
		t.Fatalf("refine Generate failed: %v", err)
	}
	if second != "ts_rank(volume, 20)" {
		t.Errorf("unexpected refined expression %q", second)
	}

	if advisor.refineCalls != 1 {
		t.Errorf("expected 1 refinement call, got %d", advisor.refineCalls)
	}
	if len(advisor.lastPrior) != 1 || advisor.lastPrior[0].Sharpe != 0.8 {
		t.Errorf("prior attempt not forwarded: %+v", advisor.lastPrior)
	}
	if catalog.operatorCalls != 1 || catalog.fieldCalls != 1 {
		t.Errorf("catalog not cached: operators=%d fields=%d", catalog.operatorCalls, catalog.fieldCalls)
	}
}

func TestNormalizeFieldCase(t *testing.T) {
	fields := []brain.DataField{
		{ID: "fnd6_newa1v1300_ib"},
		{ID: "close"},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "upper case field",
			in:   "rank(FND6_NEWA1V1300_IB / close)",
			want: "rank(fnd6_newa1v1300_ib / close)",
		},
		{
			name: "mixed case field",
			in:   "ts_rank(Close, 20)",
			want: "ts_rank(close, 20)",
		},
		{
			name: "already canonical",
			in:   "rank(close)",
			want: "rank(close)",
		},
		{
			name: "substring is not rewritten",
			in:   "rank(closed_positions)",
			want: "rank(closed_positions)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFieldCase(tt.in, fields)
			if got != tt.want {
				t.Errorf("NormalizeFieldCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type stubSimulator struct {
	alphaID  string
	simErr   error
	check    *brain.AlphaCheck
	checkErr error
	lastExpr string
}

func (s *stubSimulator) Simulate(ctx context.Context, expression string) (string, error) {
	s.lastExpr = expression
	return s.alphaID, s.simErr
}

func (s *stubSimulator) CheckAlpha(ctx context.Context, alphaID string) (*brain.AlphaCheck, error) {
	return s.check, s.checkErr
}

func TestSimulationEvaluator(t *testing.T) {
	simulator := &stubSimulator{
		alphaID: "AB12CD",
		check:   &brain.AlphaCheck{Sharpe: 1.72, Passed: true},
	}
	evaluator := NewSimulationEvaluator(simulator)

	result, err := evaluator.Evaluate(context.Background(), "rank(close)", "d1")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.AlphaID != "AB12CD" || result.Sharpe != 1.72 || !result.Passed {
		t.Errorf("unexpected result: %+v", result)
	}
	if simulator.lastExpr != "rank(close)" {
		t.Errorf("expression not forwarded: %q", simulator.lastExpr)
	}
}

func TestSimulationEvaluatorSimulationError(t *testing.T) {
	simulator := &stubSimulator{
		simErr: apperrors.NewAppError(apperrors.ErrCodeSimulation, "backtest crashed", nil),
	}
	evaluator := NewSimulationEvaluator(simulator)

	_, err := evaluator.Evaluate(context.Background(), "rank(close)", "d1")
	if err == nil {
		t.Fatal("expected simulation error to surface")
	}
	appErr := apperrors.GetAppError(err)
	if appErr == nil || !appErr.IsRetryable() {
		t.Errorf("simulation failure should stay transient: %v", err)
	}
}
