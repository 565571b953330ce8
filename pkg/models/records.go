package models

import (
	"time"
)

// =============================================================================
// INPUT RECORDS
// Produced by ingest from the flat source files.
// =============================================================================

// Transaction is a single sale. Several rows may share item, day and price;
// each one is a distinct unit sold.
type Transaction struct {
	Date  time.Time `json:"date"`
	Item  string    `json:"item"`
	Price float64   `json:"price"`
}

// Purchase is a received batch of a material or resale item.
type Purchase struct {
	Date     time.Time `json:"date"`
	Item     string    `json:"item"`
	Quantity float64   `json:"quantity"`
	UnitCost float64   `json:"unit_cost"`
	Subtotal float64   `json:"subtotal"` // Quantity * UnitCost unless given by the source
}

// Employee is one payroll line.
type Employee struct {
	Date       time.Time `json:"date"`
	EmployeeID string    `json:"employee_id"`
	Position   string    `json:"position"`
	Wage       float64   `json:"wage"`
}

// BalanceSheet holds the wide-format balance sheet: one row per heading,
// one value per quarter token (e.g. "1T 2024"), in source order.
type BalanceSheet struct {
	Quarters []string             `json:"quarters"`
	Rows     map[string][]float64 `json:"rows"`
	Present  map[string][]bool    `json:"-"` // false where the source cell was empty
}

// Value returns the value for heading at quarter index q.
func (b *BalanceSheet) Value(heading string, q int) (float64, bool) {
	row, ok := b.Rows[heading]
	if !ok || q < 0 || q >= len(row) {
		return 0, false
	}
	if present, ok := b.Present[heading]; ok && q < len(present) && !present[q] {
		return 0, false
	}
	return row[q], true
}

// =============================================================================
// DERIVED TABLES
// =============================================================================

// SalesSummaryRow is one point of the empirical demand curve of an item.
type SalesSummaryRow struct {
	Item     string  `json:"item"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"` // >= 1
}

// ElasticityRecord is the point elasticity at the latest observed price.
type ElasticityRecord struct {
	Item              string  `json:"item"`
	CurrentPrice      float64 `json:"current_price"`
	PredictedQuantity float64 `json:"predicted_quantity"`
	Elasticity        float64 `json:"current_elasticity"`
}

// OptimalPriceRecord is the revenue-maximizing point of the fitted demand curve.
type OptimalPriceRecord struct {
	Item              string  `json:"item"`
	OptimalPrice      float64 `json:"optimal_price"`
	ExpectedQuantity  float64 `json:"expected_quantity"`
	ExpectedRevenue   float64 `json:"expected_revenue"`
	OptimalElasticity float64 `json:"optimal_elasticity"`
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
}

// DemandCurve is the fitted curve evaluated over the price grid.
type DemandCurve struct {
	Item         string    `json:"item"`
	Prices       []float64 `json:"prices"`
	Quantities   []float64 `json:"quantities"`
	Revenues     []float64 `json:"revenues"`
	OptimalIndex int       `json:"optimal_index"`
	Lambda       float64   `json:"lambda"`
}

// ComparisonRow compares the current price with the optimal one.
type ComparisonRow struct {
	Item              string  `json:"item"`
	CurrentPrice      float64 `json:"current_price"`
	OptimalPrice      float64 `json:"optimal_price"`
	PercentDifference float64 `json:"percent_difference"`
	ExpectedQuantity  float64 `json:"expected_quantity"`
	EstimatedRevenue  float64 `json:"estimated_revenue"`
}

// DecompositionRecord holds the additive components for one item and day.
type DecompositionRecord struct {
	Date     time.Time `json:"date"`
	Item     string    `json:"item"`
	Observed float64   `json:"observed"`
	Trend    float64   `json:"trend"`
	Seasonal float64   `json:"seasonal"`
	Residual float64   `json:"residual"`
}

// CashFlowRecord is one period of the gapless cash-flow calendar.
type CashFlowRecord struct {
	Period    string    `json:"period"` // "2024-03", "2024-Q1", "2024"
	Start     time.Time `json:"start"`
	Revenue   float64   `json:"revenue"`
	Expense   float64   `json:"expense"`
	NetIncome float64   `json:"net_income"`
	MarginPct float64   `json:"margin_pct"`
}

// LiquidityRecord holds the balance-sheet liquidity ratios of one quarter.
type LiquidityRecord struct {
	Quarter   string  `json:"quarter"`
	Current   float64 `json:"current"`
	Quick     float64 `json:"quick"`
	Immediate float64 `json:"immediate"`
}

// ProjectionRecord is one year of the projection table. Historical years
// are included with Projected == false.
type ProjectionRecord struct {
	Year      int     `json:"year"`
	Revenue   float64 `json:"revenue"`
	Expense   float64 `json:"expense"`
	Margin    float64 `json:"margin"`
	Projected bool    `json:"projected"`
}

// PositionPayroll aggregates the latest payroll year by position.
type PositionPayroll struct {
	Year        int     `json:"year"`
	Position    string  `json:"position"`
	Headcount   int     `json:"headcount"`
	TotalWages  float64 `json:"total_wages"`
	AverageWage float64 `json:"average_wage"`
}
