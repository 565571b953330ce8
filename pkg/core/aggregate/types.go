// Package aggregate derives grouped tables from transactions, purchases and
// payroll lines. Every function is pure and returns rows sorted by date
// then item so identical inputs yield identical tables.
package aggregate

import "time"

// ItemDailyRevenue is the summed price of one item's sales on one day.
type ItemDailyRevenue struct {
	Date    time.Time `json:"date"`
	Item    string    `json:"item"`
	Revenue float64   `json:"revenue"`
	Count   int       `json:"count"`
}

// PeriodRevenue is revenue per item over a calendar bucket, labeled by the
// bucket's last day.
type PeriodRevenue struct {
	PeriodEnd time.Time `json:"period_end"`
	Item      string    `json:"item"`
	Revenue   float64   `json:"revenue"`
}

// CumulativePoint is the running revenue of an item up to Date.
type CumulativePoint struct {
	Date       time.Time `json:"date"`
	Item       string    `json:"item"`
	Revenue    float64   `json:"revenue"`
	Cumulative float64   `json:"cumulative"`
}

// DailyTicket is the mean sale value of one day.
type DailyTicket struct {
	Date       time.Time    `json:"date"`
	Weekday    time.Weekday `json:"weekday"`
	MeanTicket float64      `json:"mean_ticket"`
}

// WeekdayAverage is the mean of daily tickets falling on one weekday.
type WeekdayAverage struct {
	Weekday time.Weekday `json:"weekday"`
	Mean    float64      `json:"mean"`
	Days    int          `json:"days"`
}

// CompositionRow is an item's share of a week's mean daily revenue.
type CompositionRow struct {
	WeekEnd          time.Time `json:"week_end"`
	Item             string    `json:"item"`
	MeanDailyRevenue float64   `json:"mean_daily_revenue"`
	SharePct         float64   `json:"share_pct"`
}

// InventoryPoint is the stock movement and running balance of an item.
type InventoryPoint struct {
	Date      time.Time `json:"date"`
	Item      string    `json:"item"`
	NetChange float64   `json:"net_change"`
	Balance   float64   `json:"balance"`
}

// Bucket selects a calendar granularity.
type Bucket int

const (
	Week Bucket = iota
	Month
	Quarter
)

func (b Bucket) String() string {
	switch b {
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	}
	return "unknown"
}

// End returns the last day of the bucket containing d. Weeks end on Sunday.
func (b Bucket) End(d time.Time) time.Time {
	y, m, day := d.Date()
	switch b {
	case Week:
		return time.Date(y, m, day+(7-int(d.Weekday()))%7, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
	default:
		q := (int(m) - 1) / 3
		return time.Date(y, time.Month(q*3+4), 0, 0, 0, 0, 0, time.UTC)
	}
}
