package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/elasticity"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/core/logging"
	"smallbiz_analytics/pkg/core/valuation"
	"smallbiz_analytics/pkg/models"
)

// --- Fixtures ---

var headings = config.Headings{
	CurrentAssets:      "Ativo Circulante",
	CurrentLiabilities: "Passivo Circulante",
	Inventory:          "Estoque",
	Cash:               "Caixa",
}

type fakeRates struct {
	benchmark, inflation float64
	err                  error
}

func (f fakeRates) Benchmark(context.Context) (float64, error) { return f.benchmark, f.err }
func (f fakeRates) TrailingInflation(context.Context) (float64, error) {
	return f.inflation, f.err
}

// sampleInputs sells "Latte" at seven rotating prices with exponentially
// falling demand and "Mocha" at a single price, over six weeks of 2024.
func sampleInputs() *Inputs {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{3, 3.5, 4, 4.5, 5, 5.5, 6}

	in := &Inputs{}
	for d := 0; d < 42; d++ {
		day := start.AddDate(0, 0, d)
		p := prices[d%len(prices)]
		n := int(math.Round(60 * math.Exp(-0.25*p)))
		for i := 0; i < n; i++ {
			in.Transactions = append(in.Transactions, models.Transaction{Date: day, Item: "Latte", Price: p})
		}
		in.Transactions = append(in.Transactions, models.Transaction{Date: day, Item: "Mocha", Price: 2})
	}

	in.Purchases = []models.Purchase{
		{Date: start, Item: "Leite", Quantity: 100, UnitCost: 2, Subtotal: 200},
		{Date: start.AddDate(0, 1, 0), Item: "Leite", Quantity: 50, UnitCost: 2, Subtotal: 100},
	}
	in.Employees = []models.Employee{
		{Date: start, EmployeeID: "1", Position: "Barista", Wage: 2000},
		{Date: start, EmployeeID: "2", Position: "Barista", Wage: 2200},
	}
	in.BalanceSheet = &models.BalanceSheet{
		Quarters: []string{"1T 2024"},
		Rows: map[string][]float64{
			"Ativo Circulante":   {200},
			"Passivo Circulante": {100},
			"Estoque":            {50},
			"Caixa":              {30},
		},
	}
	return in
}

func newTestOrchestrator() *Orchestrator {
	opts := Options{GrowthRate: 0.10, Horizon: 5, Headings: headings}
	opts.STL = OptionsFromSettings(&config.Settings{}, nil).STL
	return NewOrchestrator(opts, logging.Discard())
}

func findIssue(issues []Issue, stage, subject string) (Issue, bool) {
	for _, i := range issues {
		if i.Stage == stage && i.Subject == subject {
			return i, true
		}
	}
	return Issue{}, false
}

// --- Tests ---

func TestRunProducesAllSections(t *testing.T) {
	r, err := newTestOrchestrator().Run(context.Background(), sampleInputs())
	require.NoError(t, err)

	_, err = uuid.Parse(r.RunID)
	assert.NoError(t, err)

	// Aggregation
	assert.Equal(t, 6.0, r.LatestPrices["Latte"])
	assert.NotEmpty(t, r.DailyRevenue)
	assert.NotEmpty(t, r.Composition)
	assert.NotEmpty(t, r.Inventory)
	require.Len(t, r.Payroll, 1)
	assert.Equal(t, 2, r.Payroll[0].Headcount)

	// Pricing: Mocha has one price and is isolated in both stages
	require.Len(t, r.Elasticities, 1)
	assert.Equal(t, "Latte", r.Elasticities[0].Item)
	require.Len(t, r.OptimalPrices, 1)
	opt := r.OptimalPrices[0]
	assert.GreaterOrEqual(t, opt.OptimalPrice, 3.0)
	assert.LessOrEqual(t, opt.OptimalPrice, 6.0)
	require.Len(t, r.Comparison, 1)
	assert.Equal(t, 6.0, r.Comparison[0].CurrentPrice)

	for _, stage := range []string{StageElasticity, StageDemand} {
		issue, ok := findIssue(r.Issues, stage, "Mocha")
		require.True(t, ok, stage)
		assert.Equal(t, KindInsufficientData, issue.Kind)
	}

	// Seasonal reconstruction
	require.NotEmpty(t, r.Decomposition)
	for _, d := range r.Decomposition {
		assert.InDelta(t, d.Observed, d.Trend+d.Seasonal+d.Residual, 1e-6)
	}

	// Finance
	require.Len(t, r.MonthlyCashFlow, 2)
	require.Len(t, r.AnnualCashFlow, 1)
	assert.Equal(t, 300.0, r.AnnualCashFlow[0].Expense)
	require.Len(t, r.Liquidity, 1)
	assert.InDelta(t, 2.0, r.Liquidity[0].Current, 1e-12)
	assert.InDelta(t, 1.5, r.Liquidity[0].Quick, 1e-12)
	assert.InDelta(t, 0.3, r.Liquidity[0].Immediate, 1e-12)

	// Projection: one historical year plus five projected
	require.Len(t, r.Projection, 6)
	assert.False(t, r.Projection[0].Projected)
	assert.True(t, r.Projection[1].Projected)
	assert.InDelta(t, r.Projection[0].Revenue*1.1, r.Projection[1].Revenue, 1e-6)

	assert.Nil(t, r.Rates)
}

func TestRunIsDeterministic(t *testing.T) {
	o := newTestOrchestrator()
	a, err := o.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	b, err := o.Run(context.Background(), sampleInputs())
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	a.RunID, b.RunID = "", ""
	assert.Equal(t, a, b)
}

func TestRunWithRates(t *testing.T) {
	o := newTestOrchestrator()
	o.SetRateSource(fakeRates{benchmark: 0.1, inflation: 0.05})

	r, err := o.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	require.NotNil(t, r.Rates)

	flows := []float64{0}
	for _, p := range r.Projection[1:] {
		flows = append(flows, p.Margin)
	}
	assert.Equal(t, 0.1, r.Rates.Benchmark)
	assert.Equal(t, 0.05, r.Rates.Inflation)
	assert.InDelta(t, valuation.NPV(0.1, flows), r.Rates.ProjectedNPV, 1e-9)
}

func TestRunIsolatesRateFailure(t *testing.T) {
	o := newTestOrchestrator()
	o.SetRateSource(fakeRates{err: &ingest.StatusError{Series: 432, StatusCode: 503}})

	r, err := o.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.Nil(t, r.Rates)

	issue, ok := findIssue(r.Issues, StageRates, "benchmark")
	require.True(t, ok)
	assert.Equal(t, KindExternal, issue.Kind)
	assert.NotEmpty(t, r.Projection)
}

func TestRunIsolatesMissingHeading(t *testing.T) {
	in := sampleInputs()
	delete(in.BalanceSheet.Rows, "Estoque")

	r, err := newTestOrchestrator().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, r.Liquidity)

	issue, ok := findIssue(r.Issues, StageFinance, "liquidity")
	require.True(t, ok)
	assert.Equal(t, KindSchema, issue.Kind)

	var schemaErr *ingest.SchemaError
	require.True(t, errors.As(issue.Err, &schemaErr))
	assert.Equal(t, "Estoque", schemaErr.Field)
	assert.Equal(t, "1T 2024", schemaErr.Quarter)
}

func TestRunRequiresTransactions(t *testing.T) {
	_, err := newTestOrchestrator().Run(context.Background(), &Inputs{})
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestLoadInputsFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	settings := &config.Settings{
		SalesPath:     write("sales.csv", "date,coffee_name,money\n2024-03-01,Latte,38.7\n2024-03-01,,38.7\n"),
		PurchasesPath: filepath.Join(dir, "missing.csv"),
		BalancePath: write("balance.csv", "Item;1T 2024\n"+
			"Ativo Circulante;1.200,50\nPassivo Circulante;600\nEstoque;100\nCaixa e Equivalentes de Caixa;50\n"),
	}
	schemas, err := config.DefaultSchemas()
	require.NoError(t, err)

	in, err := LoadInputs(settings, schemas)
	require.NoError(t, err)

	require.Len(t, in.Transactions, 1)
	assert.Equal(t, "Latte", in.Transactions[0].Item)
	assert.Empty(t, in.Purchases)
	require.NotNil(t, in.BalanceSheet)
	v, ok := in.BalanceSheet.Value("Ativo Circulante", 0)
	require.True(t, ok)
	assert.InDelta(t, 1200.5, v, 1e-9)

	// one empty item cell, one skipped source
	assert.Len(t, in.Issues, 2)
}

func hasSkippedSource(issues []ingest.Issue, source, field string) bool {
	for _, i := range issues {
		if i.Source == source && i.Line == 0 && i.Field == field && strings.HasSuffix(i.Msg, "source skipped") {
			return true
		}
	}
	return false
}

func TestLoadInputsSkipsOptionalSourceWithSchemaError(t *testing.T) {
	sales := "date,coffee_name,money\n" +
		"2024-03-01,Latte,3\n2024-03-01,Latte,3\n2024-03-01,Latte,3\n" +
		"2024-03-02,Latte,4\n2024-03-02,Latte,4\n2024-03-03,Latte,5\n"

	cases := []struct {
		name     string
		file     string
		content  string
		settings func(s *config.Settings, path string)
		source   string
		field    string
		check    func(t *testing.T, in *Inputs)
	}{
		{
			name:     "purchases without cost or subtotal",
			file:     "purchases.csv",
			content:  "date_received,insumo,quantity_received\n2024-03-01,Leite,10\n",
			settings: func(s *config.Settings, path string) { s.PurchasesPath = path },
			source:   "purchases",
			field:    "unit_cost",
			check:    func(t *testing.T, in *Inputs) { assert.Nil(t, in.Purchases) },
		},
		{
			name:     "employees without wage",
			file:     "employees.csv",
			content:  "data,funcionario,cargo\n2024-03-01,E1,Barista\n",
			settings: func(s *config.Settings, path string) { s.EmployeesPath = path },
			source:   "employees",
			field:    "wage",
			check:    func(t *testing.T, in *Inputs) { assert.Nil(t, in.Employees) },
		},
		{
			name:     "balance sheet with another label column",
			file:     "balance.csv",
			content:  "Conta;1T 2024\nAtivo Circulante;200\nPassivo Circulante;100\n",
			settings: func(s *config.Settings, path string) { s.BalancePath = path },
			source:   "balance",
			field:    "Item",
			check:    func(t *testing.T, in *Inputs) { assert.Nil(t, in.BalanceSheet) },
		},
	}

	schemas, err := config.DefaultSchemas()
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			salesPath := filepath.Join(dir, "sales.csv")
			require.NoError(t, os.WriteFile(salesPath, []byte(sales), 0o644))
			path := filepath.Join(dir, tc.file)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			settings := &config.Settings{SalesPath: salesPath}
			tc.settings(settings, path)

			in, err := LoadInputs(settings, schemas)
			require.NoError(t, err)
			require.Len(t, in.Transactions, 6)
			tc.check(t, in)
			assert.True(t, hasSkippedSource(in.Issues, tc.source, tc.field), "issues: %v", in.Issues)

			r, err := newTestOrchestrator().Run(context.Background(), in)
			require.NoError(t, err)
			assert.NotEmpty(t, r.Elasticities)
			assert.NotEmpty(t, r.MonthlyCashFlow)
		})
	}
}

func TestLoadInputsAcceptsSubtotalOnlyPurchases(t *testing.T) {
	dir := t.TempDir()
	salesPath := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(salesPath, []byte("date,coffee_name,money\n2024-03-01,Latte,3\n"), 0o644))
	purchasesPath := filepath.Join(dir, "purchases.csv")
	require.NoError(t, os.WriteFile(purchasesPath,
		[]byte("date_received,insumo,quantity_received,subtotal\n2024-03-01,Leite,10,45\n"), 0o644))

	schemas, err := config.DefaultSchemas()
	require.NoError(t, err)
	in, err := LoadInputs(&config.Settings{SalesPath: salesPath, PurchasesPath: purchasesPath}, schemas)
	require.NoError(t, err)

	require.Len(t, in.Purchases, 1)
	assert.InDelta(t, 45.0, in.Purchases[0].Subtotal, 1e-9)
	assert.InDelta(t, 4.5, in.Purchases[0].UnitCost, 1e-9)
	assert.False(t, hasSkippedSource(in.Issues, "purchases", "unit_cost"))
}

func TestLoadInputsRequiresSales(t *testing.T) {
	schemas, err := config.DefaultSchemas()
	require.NoError(t, err)
	_, err = LoadInputs(&config.Settings{SalesPath: filepath.Join(t.TempDir(), "none.csv")}, schemas)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteArtifacts(t *testing.T) {
	r, err := newTestOrchestrator().Run(context.Background(), sampleInputs())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteArtifacts(r, dir, "R$")
	require.NoError(t, err)
	require.Len(t, paths, 5)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}

	md, err := os.ReadFile(filepath.Join(dir, ReportMD))
	require.NoError(t, err)
	assert.Contains(t, string(md), r.RunID)
	assert.Contains(t, string(md), "elasticity/Mocha")
}

func TestClassifyIgnoredRowsAsData(t *testing.T) {
	err := fmt.Errorf("1 of 3: %w", elasticity.ErrNonPositiveRows)
	assert.Equal(t, KindData, classify(err, KindInsufficientData))
	assert.Equal(t, KindInsufficientData, classify(elasticity.ErrInsufficientData, KindDegenerate))
}
