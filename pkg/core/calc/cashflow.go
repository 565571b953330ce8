package calc

import (
	"fmt"
	"time"

	"smallbiz_analytics/pkg/models"
)

// Granularity of a cash-flow calendar.
type Granularity int

const (
	Monthly Granularity = iota
	Quarterly
	Annual
)

func (g Granularity) start(t time.Time) time.Time {
	y, m, _ := t.Date()
	switch g {
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Quarterly:
		return time.Date(y, time.Month((int(m)-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

func (g Granularity) next(t time.Time) time.Time {
	switch g {
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

func (g Granularity) label(start time.Time) string {
	switch g {
	case Monthly:
		return start.Format("2006-01")
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	default:
		return fmt.Sprintf("%d", start.Year())
	}
}

// CashFlow buckets revenue (sales) and expense (purchase subtotals) over a
// gapless calendar from the earliest to the latest date of either source.
// Periods without activity are zero.
func CashFlow(tx []models.Transaction, purchases []models.Purchase, g Granularity) []models.CashFlowRecord {
	revenue := make(map[time.Time]float64)
	expense := make(map[time.Time]float64)
	var first, last time.Time
	observe := func(t time.Time) time.Time {
		s := g.start(t)
		if first.IsZero() || s.Before(first) {
			first = s
		}
		if last.IsZero() || s.After(last) {
			last = s
		}
		return s
	}

	for _, t := range tx {
		revenue[observe(t.Date)] += t.Price
	}
	for _, p := range purchases {
		expense[observe(p.Date)] += p.Subtotal
	}
	if first.IsZero() {
		return nil
	}

	var out []models.CashFlowRecord
	for s := first; !s.After(last); s = g.next(s) {
		out = append(out, newCashFlowRecord(g.label(s), s, revenue[s], expense[s]))
	}
	return out
}

// MonthlyCashFlow is CashFlow by calendar month.
func MonthlyCashFlow(tx []models.Transaction, purchases []models.Purchase) []models.CashFlowRecord {
	return CashFlow(tx, purchases, Monthly)
}

// QuarterlyCashFlow is CashFlow by calendar quarter.
func QuarterlyCashFlow(tx []models.Transaction, purchases []models.Purchase) []models.CashFlowRecord {
	return CashFlow(tx, purchases, Quarterly)
}

// AnnualCashFlow rolls monthly records up to calendar years.
func AnnualCashFlow(monthly []models.CashFlowRecord) []models.CashFlowRecord {
	var out []models.CashFlowRecord
	for _, m := range monthly {
		start := Annual.start(m.Start)
		if len(out) == 0 || !out[len(out)-1].Start.Equal(start) {
			out = append(out, models.CashFlowRecord{Period: Annual.label(start), Start: start})
		}
		y := &out[len(out)-1]
		y.Revenue += m.Revenue
		y.Expense += m.Expense
	}
	for i := range out {
		out[i] = newCashFlowRecord(out[i].Period, out[i].Start, out[i].Revenue, out[i].Expense)
	}
	return out
}

func newCashFlowRecord(period string, start time.Time, revenue, expense float64) models.CashFlowRecord {
	net := revenue - expense
	return models.CashFlowRecord{
		Period:    period,
		Start:     start,
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: net,
		MarginPct: NetMargin(net, revenue),
	}
}
