package calc

import (
	"errors"
	"math"
	"testing"
	"time"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/models"
)

var headings = config.Headings{
	CurrentAssets:      "Ativo Circulante",
	CurrentLiabilities: "Passivo Circulante",
	Inventory:          "Estoque",
	Cash:               "Caixa e Equivalentes de Caixa",
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sheet(quarters []string, rows map[string][]float64) *models.BalanceSheet {
	present := make(map[string][]bool)
	for h, vals := range rows {
		p := make([]bool, len(vals))
		for i := range p {
			p[i] = true
		}
		present[h] = p
	}
	return &models.BalanceSheet{Quarters: quarters, Rows: rows, Present: present}
}

func TestLiquidityRatios(t *testing.T) {
	bs := sheet([]string{"1T 2024"}, map[string][]float64{
		headings.CurrentAssets:      {200},
		headings.CurrentLiabilities: {100},
		headings.Inventory:          {50},
		headings.Cash:               {30},
	})

	out, errs, err := Liquidity(bs, headings)
	if err != nil || len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v / %v", err, errs)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 quarter, got %d", len(out))
	}
	if out[0].Current != 2.0 {
		t.Errorf("Expected current ratio 2.0, got %f", out[0].Current)
	}
	if out[0].Quick != 1.5 {
		t.Errorf("Expected quick ratio 1.5, got %f", out[0].Quick)
	}
	if math.Abs(out[0].Immediate-0.3) > 1e-12 {
		t.Errorf("Expected immediate ratio 0.3, got %f", out[0].Immediate)
	}
}

func TestLiquidityZeroLiabilities(t *testing.T) {
	bs := sheet([]string{"1T 2024", "2T 2024"}, map[string][]float64{
		headings.CurrentAssets:      {200, 300},
		headings.CurrentLiabilities: {0, 150},
		headings.Inventory:          {50, 0},
		headings.Cash:               {30, 30},
	})

	out, errs, err := Liquidity(bs, headings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(errs) != 1 || errs[0].Quarter != "1T 2024" || !errors.Is(errs[0], ErrDegenerate) {
		t.Errorf("Expected degenerate 1T 2024, got %v", errs)
	}
	if len(out) != 1 || out[0].Quarter != "2T 2024" || out[0].Current != 2.0 {
		t.Errorf("Expected 2T 2024 with current ratio 2.0, got %+v", out)
	}
}

func TestLiquidityMissingHeading(t *testing.T) {
	bs := sheet([]string{"1T 2024"}, map[string][]float64{
		headings.CurrentAssets:      {200},
		headings.CurrentLiabilities: {100},
		headings.Cash:               {30},
	})

	_, _, err := Liquidity(bs, headings)
	var schemaErr *ingest.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "Estoque" || schemaErr.Quarter != "1T 2024" {
		t.Errorf("Expected Estoque/1T 2024, got %s/%s", schemaErr.Field, schemaErr.Quarter)
	}
}

func TestCashFlowGaplessMonths(t *testing.T) {
	tx := []models.Transaction{
		{Date: day(2024, 1, 10), Item: "Latte", Price: 100},
		{Date: day(2024, 3, 5), Item: "Latte", Price: 50},
	}
	purchases := []models.Purchase{
		{Date: day(2023, 12, 20), Item: "Milk", Subtotal: 40},
		{Date: day(2024, 1, 2), Item: "Milk", Subtotal: 30},
	}

	monthly := MonthlyCashFlow(tx, purchases)
	if len(monthly) != 4 {
		t.Fatalf("Expected 4 months (Dec-Mar), got %d", len(monthly))
	}
	want := []struct {
		period string
		net    float64
		margin float64
	}{
		{"2023-12", -40, 0},
		{"2024-01", 70, 70},
		{"2024-02", 0, 0},
		{"2024-03", 50, 100},
	}
	for i, w := range want {
		if monthly[i].Period != w.period || monthly[i].NetIncome != w.net || math.Abs(monthly[i].MarginPct-w.margin) > 1e-9 {
			t.Errorf("Month %d: expected %s net %.2f margin %.2f, got %+v", i, w.period, w.net, w.margin, monthly[i])
		}
	}

	annual := AnnualCashFlow(monthly)
	if len(annual) != 2 || annual[0].Period != "2023" || annual[1].Revenue != 150 || annual[1].Expense != 30 {
		t.Errorf("Unexpected annual roll-up: %+v", annual)
	}
	if check := CheckRollup(monthly, annual); !check.IsBalanced {
		t.Errorf("Expected balanced roll-up, got %v", check.Warnings)
	}

	quarterly := QuarterlyCashFlow(tx, purchases)
	if len(quarterly) != 2 || quarterly[0].Period != "2023-Q4" || quarterly[1].Period != "2024-Q1" {
		t.Errorf("Unexpected quarters: %+v", quarterly)
	}

	if MonthlyCashFlow(nil, nil) != nil {
		t.Errorf("Expected nil for empty input")
	}
}

func TestCheckRollupDetectsGap(t *testing.T) {
	fine := []models.CashFlowRecord{{Period: "2024-01", Revenue: 10, NetIncome: 10}}
	coarse := []models.CashFlowRecord{{Period: "2024", Revenue: 12, NetIncome: 12}}
	if check := CheckRollup(fine, coarse); check.IsBalanced || len(check.Warnings) != 1 {
		t.Errorf("Expected one warning, got %+v", check)
	}
}

func TestNetMarginZeroRevenue(t *testing.T) {
	if m := NetMargin(-50, 0); m != 0 {
		t.Errorf("Expected 0 margin for zero revenue, got %f", m)
	}
	if m := NetMargin(25, 100); m != 25 {
		t.Errorf("Expected 25%% margin, got %f", m)
	}
}

func TestGrowthMetrics(t *testing.T) {
	if g := GrowthRate(110, 100); math.Abs(g-0.10) > 1e-12 {
		t.Errorf("Expected growth 0.10, got %f", g)
	}
	if c := CAGR(1610.51, 1000, 5); math.Abs(c-0.10) > 1e-6 {
		t.Errorf("Expected CAGR 0.10, got %f", c)
	}
	if _, err := CurrentRatio(1, 0); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate, got %v", err)
	}
}
