package aggregate

import (
	"sort"
	"time"

	"smallbiz_analytics/pkg/models"
)

type itemPrice struct {
	item  string
	price float64
}

type dayItem struct {
	day  time.Time
	item string
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SalesSummary counts sales per distinct (item, price). Each transaction is
// one unit, so every row has quantity >= 1.
func SalesSummary(tx []models.Transaction) []models.SalesSummaryRow {
	counts := make(map[itemPrice]int)
	for _, t := range tx {
		counts[itemPrice{t.Item, t.Price}]++
	}

	rows := make([]models.SalesSummaryRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, models.SalesSummaryRow{Item: k.item, Price: k.price, Quantity: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Item != rows[j].Item {
			return rows[i].Item < rows[j].Item
		}
		return rows[i].Price < rows[j].Price
	})
	return rows
}

// LatestPrices returns the price of each item's most recent sale. Sales on
// the same day are ordered by input position, so the last row wins.
func LatestPrices(tx []models.Transaction) map[string]float64 {
	latest := make(map[string]float64)
	when := make(map[string]time.Time)
	for _, t := range tx {
		d := truncate(t.Date)
		if prev, ok := when[t.Item]; ok && d.Before(prev) {
			continue
		}
		when[t.Item] = d
		latest[t.Item] = t.Price
	}
	return latest
}

// DailyRevenue sums sales per (day, item).
func DailyRevenue(tx []models.Transaction) []ItemDailyRevenue {
	sums := make(map[dayItem]*ItemDailyRevenue)
	for _, t := range tx {
		k := dayItem{truncate(t.Date), t.Item}
		r, ok := sums[k]
		if !ok {
			r = &ItemDailyRevenue{Date: k.day, Item: k.item}
			sums[k] = r
		}
		r.Revenue += t.Price
		r.Count++
	}

	out := make([]ItemDailyRevenue, 0, len(sums))
	for _, r := range sums {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// ByItem splits daily revenue into per-item series, keeping date order.
func ByItem(daily []ItemDailyRevenue) map[string][]ItemDailyRevenue {
	out := make(map[string][]ItemDailyRevenue)
	for _, d := range daily {
		out[d.Item] = append(out[d.Item], d)
	}
	return out
}

// Items returns the distinct item names of the transactions, sorted.
func Items(tx []models.Transaction) []string {
	seen := make(map[string]bool)
	var items []string
	for _, t := range tx {
		if !seen[t.Item] {
			seen[t.Item] = true
			items = append(items, t.Item)
		}
	}
	sort.Strings(items)
	return items
}

// PeriodRevenueBy sums revenue per item over weeks, months or quarters.
func PeriodRevenueBy(tx []models.Transaction, bucket Bucket) []PeriodRevenue {
	sums := make(map[dayItem]float64)
	for _, t := range tx {
		sums[dayItem{bucket.End(t.Date), t.Item}] += t.Price
	}

	out := make([]PeriodRevenue, 0, len(sums))
	for k, v := range sums {
		out = append(out, PeriodRevenue{PeriodEnd: k.day, Item: k.item, Revenue: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodEnd.Equal(out[j].PeriodEnd) {
			return out[i].PeriodEnd.Before(out[j].PeriodEnd)
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// CumulativeRevenue accumulates each item's daily revenue in date order.
func CumulativeRevenue(tx []models.Transaction) []CumulativePoint {
	daily := DailyRevenue(tx)
	running := make(map[string]float64)
	out := make([]CumulativePoint, 0, len(daily))
	for _, d := range daily {
		running[d.Item] += d.Revenue
		out = append(out, CumulativePoint{Date: d.Date, Item: d.Item, Revenue: d.Revenue, Cumulative: running[d.Item]})
	}
	return out
}

// WeekdayRevenue returns the mean ticket of each day with sales.
func WeekdayRevenue(tx []models.Transaction) []DailyTicket {
	type acc struct {
		sum float64
		n   int
	}
	days := make(map[time.Time]*acc)
	for _, t := range tx {
		d := truncate(t.Date)
		a, ok := days[d]
		if !ok {
			a = &acc{}
			days[d] = a
		}
		a.sum += t.Price
		a.n++
	}

	out := make([]DailyTicket, 0, len(days))
	for d, a := range days {
		out = append(out, DailyTicket{Date: d, Weekday: d.Weekday(), MeanTicket: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WeekdayAverages averages daily tickets per weekday, Monday first.
// Weekdays without sales are omitted.
func WeekdayAverages(tx []models.Transaction) []WeekdayAverage {
	var sums [7]float64
	var counts [7]int
	for _, d := range WeekdayRevenue(tx) {
		sums[d.Weekday] += d.MeanTicket
		counts[d.Weekday]++
	}

	var out []WeekdayAverage
	for i := 1; i <= 7; i++ {
		wd := time.Weekday(i % 7)
		if counts[wd] == 0 {
			continue
		}
		out = append(out, WeekdayAverage{Weekday: wd, Mean: sums[wd] / float64(counts[wd]), Days: counts[wd]})
	}
	return out
}

// WeeklyComposition computes, per week ending Sunday, each active item's
// mean daily revenue over the days it sold and its share of the sum of
// those means. Items with no sales in a week emit no row; a week whose
// means sum to zero reports zero shares.
func WeeklyComposition(tx []models.Transaction) []CompositionRow {
	type acc struct {
		sum  float64
		days int
	}
	weeks := make(map[time.Time]map[string]*acc)
	for _, d := range DailyRevenue(tx) {
		end := Week.End(d.Date)
		items, ok := weeks[end]
		if !ok {
			items = make(map[string]*acc)
			weeks[end] = items
		}
		a, ok := items[d.Item]
		if !ok {
			a = &acc{}
			items[d.Item] = a
		}
		a.sum += d.Revenue
		a.days++
	}

	ends := make([]time.Time, 0, len(weeks))
	for end := range weeks {
		ends = append(ends, end)
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].Before(ends[j]) })

	var out []CompositionRow
	for _, end := range ends {
		items := weeks[end]
		names := make([]string, 0, len(items))
		total := 0.0
		for name, a := range items {
			names = append(names, name)
			total += a.sum / float64(a.days)
		}
		sort.Strings(names)
		for _, name := range names {
			a := items[name]
			mean := a.sum / float64(a.days)
			share := 0.0
			if total != 0 {
				share = mean / total * 100
			}
			out = append(out, CompositionRow{WeekEnd: end, Item: name, MeanDailyRevenue: mean, SharePct: share})
		}
	}
	return out
}
