// Package pipeline runs every analysis stage over one set of inputs and
// collects the derived tables into a Report.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smallbiz_analytics/pkg/core/aggregate"
	"smallbiz_analytics/pkg/core/calc"
	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/demand"
	"smallbiz_analytics/pkg/core/elasticity"
	"smallbiz_analytics/pkg/core/projection"
	"smallbiz_analytics/pkg/core/seasonal"
	"smallbiz_analytics/pkg/core/valuation"
	"smallbiz_analytics/pkg/models"
)

// ErrNoTransactions is returned when a run has no sales to analyze.
var ErrNoTransactions = errors.New("no transactions to analyze")

// RateSource provides external reference rates as decimals.
// ingest.RatesClient is the production implementation.
type RateSource interface {
	Benchmark(ctx context.Context) (float64, error)
	TrailingInflation(ctx context.Context) (float64, error)
}

// Options drive the stages that take parameters.
type Options struct {
	GrowthRate float64
	Horizon    int
	Headings   config.Headings
	STL        seasonal.Options
}

// OptionsFromSettings builds Options from runtime settings and the balance
// sheet layout of the source schemas.
func OptionsFromSettings(s *config.Settings, schemas *config.Schemas) Options {
	opts := Options{
		GrowthRate: s.GrowthRate,
		Horizon:    s.ProjectionYears,
		STL:        seasonal.DefaultOptions(),
	}
	if schemas != nil && schemas.Balance.Wide != nil {
		opts.Headings = schemas.Balance.Wide.Headings
	}
	return opts
}

// Rates holds the reference rates of a run and the present value of the
// projected margins discounted at the benchmark.
type Rates struct {
	Benchmark    float64 `json:"benchmark"`
	Inflation    float64 `json:"inflation"`
	ProjectedNPV float64 `json:"projected_npv"`
}

// Report holds every derived table of a run. RunID is the only field that
// differs between runs over identical inputs.
type Report struct {
	RunID string `json:"run_id"`

	// Aggregation
	SalesSummary    []models.SalesSummaryRow     `json:"sales_summary"`
	LatestPrices    map[string]float64           `json:"latest_prices"`
	DailyRevenue    []aggregate.ItemDailyRevenue `json:"daily_revenue"`
	Cumulative      []aggregate.CumulativePoint  `json:"cumulative"`
	WeeklyRevenue   []aggregate.PeriodRevenue    `json:"weekly_revenue"`
	MonthlyRevenue  []aggregate.PeriodRevenue    `json:"monthly_revenue"`
	WeekdayAverages []aggregate.WeekdayAverage   `json:"weekday_averages"`
	Composition     []aggregate.CompositionRow   `json:"composition"`
	Inventory       []aggregate.InventoryPoint   `json:"inventory"`
	Payroll         []models.PositionPayroll     `json:"payroll"`

	// Pricing
	Elasticities  []models.ElasticityRecord   `json:"elasticities"`
	OptimalPrices []models.OptimalPriceRecord `json:"optimal_prices"`
	DemandCurves  []models.DemandCurve        `json:"demand_curves"`
	Comparison    []models.ComparisonRow      `json:"comparison"`

	Decomposition []models.DecompositionRecord `json:"decomposition"`

	// Finance
	MonthlyCashFlow   []models.CashFlowRecord   `json:"monthly_cash_flow"`
	QuarterlyCashFlow []models.CashFlowRecord   `json:"quarterly_cash_flow"`
	AnnualCashFlow    []models.CashFlowRecord   `json:"annual_cash_flow"`
	Liquidity         []models.LiquidityRecord  `json:"liquidity"`
	Projection        []models.ProjectionRecord `json:"projection"`

	Rates  *Rates  `json:"rates,omitempty"`
	Issues []Issue `json:"issues"`
}

// Orchestrator runs the stages in a fixed order. Each stage only reads the
// inputs and the tables of earlier stages, and a failing item, quarter or
// section becomes an Issue instead of stopping the run.
type Orchestrator struct {
	opts      Options
	logger    *logrus.Logger
	rates     RateSource
	optimizer *demand.Optimizer
}

// NewOrchestrator creates an orchestrator without a rate source.
func NewOrchestrator(opts Options, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		logger:    logger,
		optimizer: demand.NewOptimizer(),
	}
}

// SetRateSource enables the reference-rate stage.
func (o *Orchestrator) SetRateSource(src RateSource) {
	o.rates = src
}

// Run executes Aggregation, then Elasticity, Demand, Seasonal, Finance,
// Projection and, when a rate source is set, Rates.
func (o *Orchestrator) Run(ctx context.Context, in *Inputs) (*Report, error) {
	if in == nil || len(in.Transactions) == 0 {
		return nil, ErrNoTransactions
	}

	r := &Report{RunID: uuid.NewString()}
	log := o.logger.WithField("run_id", r.RunID)
	start := time.Now()

	for _, issue := range in.Issues {
		r.Issues = append(r.Issues, Issue{Stage: StageIngest, Subject: issue.Source, Kind: KindData, Err: errors.New(issue.String())})
	}
	if len(in.Issues) > 0 {
		log.WithFields(logrus.Fields{"stage": StageIngest, "issues": len(in.Issues)}).Warn("ingestion reported data issues")
	}

	o.stage(log, StageAggregate, func() int { return o.runAggregate(r, in) })
	o.stage(log, StageElasticity, func() int { return o.runElasticity(log, r) })
	o.stage(log, StageDemand, func() int { return o.runDemand(log, r) })
	o.stage(log, StageSeasonal, func() int { return o.runSeasonal(log, r) })
	o.stage(log, StageFinance, func() int { return o.runFinance(log, r, in) })
	o.stage(log, StageProjection, func() int { return o.runProjection(log, r) })
	if o.rates != nil {
		o.stage(log, StageRates, func() int { return o.runReferenceRates(ctx, log, r) })
	}

	log.WithFields(logrus.Fields{
		"issues":   len(r.Issues),
		"duration": time.Since(start),
	}).Info("pipeline finished")
	return r, nil
}

// =============================================================================
// STAGES
// Each returns the number of rows or items it produced, for logging.
// =============================================================================

func (o *Orchestrator) runAggregate(r *Report, in *Inputs) int {
	tx := in.Transactions
	r.SalesSummary = aggregate.SalesSummary(tx)
	r.LatestPrices = aggregate.LatestPrices(tx)
	r.DailyRevenue = aggregate.DailyRevenue(tx)
	r.Cumulative = aggregate.CumulativeRevenue(tx)
	r.WeeklyRevenue = aggregate.PeriodRevenueBy(tx, aggregate.Week)
	r.MonthlyRevenue = aggregate.PeriodRevenueBy(tx, aggregate.Month)
	r.WeekdayAverages = aggregate.WeekdayAverages(tx)
	r.Composition = aggregate.WeeklyComposition(tx)
	if len(in.Purchases) > 0 {
		r.Inventory = aggregate.InventoryBalance(in.Purchases, tx)
	}
	if len(in.Employees) > 0 {
		r.Payroll = aggregate.PayrollByPosition(in.Employees)
	}
	return len(r.SalesSummary)
}

func (o *Orchestrator) runElasticity(log *logrus.Entry, r *Report) int {
	records, errs := elasticity.Estimate(r.SalesSummary, r.LatestPrices)
	r.Elasticities = records
	for _, e := range errs {
		o.isolate(log, r, StageElasticity, e.Item, e.Err, KindInsufficientData)
	}
	return len(records)
}

func (o *Orchestrator) runDemand(log *logrus.Entry, r *Report) int {
	optimal, curves, errs := o.optimizer.Optimize(r.SalesSummary)
	r.OptimalPrices = optimal
	r.DemandCurves = curves
	r.Comparison = demand.Compare(optimal, r.LatestPrices)
	for _, e := range errs {
		o.isolate(log, r, StageDemand, e.Item, e.Err, KindInsufficientData)
	}
	return len(optimal)
}

func (o *Orchestrator) runSeasonal(log *logrus.Entry, r *Report) int {
	records, errs := seasonal.DecomposeAll(r.DailyRevenue, o.opts.STL)
	r.Decomposition = records
	for _, e := range errs {
		o.isolate(log, r, StageSeasonal, e.Item, e.Err, KindInsufficientData)
	}
	return len(records)
}

func (o *Orchestrator) runFinance(log *logrus.Entry, r *Report, in *Inputs) int {
	// 1. Cash flow calendars
	r.MonthlyCashFlow = calc.MonthlyCashFlow(in.Transactions, in.Purchases)
	r.QuarterlyCashFlow = calc.QuarterlyCashFlow(in.Transactions, in.Purchases)
	r.AnnualCashFlow = calc.AnnualCashFlow(r.MonthlyCashFlow)

	// 2. Roll-up integrity
	for _, coarse := range []struct {
		name    string
		records []models.CashFlowRecord
	}{
		{"quarterly", r.QuarterlyCashFlow},
		{"annual", r.AnnualCashFlow},
	} {
		check := calc.CheckRollup(r.MonthlyCashFlow, coarse.records)
		for _, w := range check.Warnings {
			o.isolate(log, r, StageFinance, coarse.name, errors.New(w), KindData)
		}
	}

	// 3. Liquidity
	if in.BalanceSheet == nil {
		return len(r.MonthlyCashFlow)
	}
	records, errs, err := calc.Liquidity(in.BalanceSheet, o.opts.Headings)
	if err != nil {
		o.isolate(log, r, StageFinance, "liquidity", err, KindSchema)
		return len(r.MonthlyCashFlow)
	}
	r.Liquidity = records
	for _, e := range errs {
		o.isolate(log, r, StageFinance, e.Quarter, e.Err, KindDegenerate)
	}
	return len(r.MonthlyCashFlow) + len(records)
}

func (o *Orchestrator) runProjection(log *logrus.Entry, r *Report) int {
	records, err := projection.ProjectFromHistory(r.AnnualCashFlow, o.opts.GrowthRate, o.opts.Horizon)
	if err != nil {
		o.isolate(log, r, StageProjection, "", err, KindInsufficientData)
		return 0
	}
	r.Projection = records
	return len(records)
}

func (o *Orchestrator) runReferenceRates(ctx context.Context, log *logrus.Entry, r *Report) int {
	benchmark, err := o.rates.Benchmark(ctx)
	if err != nil {
		o.isolate(log, r, StageRates, "benchmark", err, KindExternal)
		return 0
	}
	inflation, err := o.rates.TrailingInflation(ctx)
	if err != nil {
		o.isolate(log, r, StageRates, "inflation", err, KindExternal)
		return 0
	}

	// Year k of the projection is discounted k periods.
	flows := []float64{0}
	for _, p := range r.Projection {
		if p.Projected {
			flows = append(flows, p.Margin)
		}
	}
	r.Rates = &Rates{
		Benchmark:    benchmark,
		Inflation:    inflation,
		ProjectedNPV: valuation.NPV(benchmark, flows),
	}
	return 2
}

// =============================================================================
// HELPERS
// =============================================================================

func (o *Orchestrator) stage(log *logrus.Entry, name string, run func() int) {
	start := time.Now()
	log.WithField("stage", name).Debug("stage started")
	n := run()
	log.WithFields(logrus.Fields{
		"stage":    name,
		"items":    n,
		"duration": time.Since(start),
	}).Info("stage finished")
}

func (o *Orchestrator) isolate(log *logrus.Entry, r *Report, stage, subject string, err error, def Kind) {
	issue := Issue{Stage: stage, Subject: subject, Kind: classify(err, def), Err: err}
	r.Issues = append(r.Issues, issue)
	log.WithFields(logrus.Fields{
		"stage":   stage,
		"subject": subject,
		"kind":    issue.Kind,
	}).WithError(err).Warn("isolated failure")
}
