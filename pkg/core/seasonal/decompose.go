package seasonal

import (
	"fmt"
	"sort"

	"smallbiz_analytics/pkg/core/aggregate"
	"smallbiz_analytics/pkg/models"
)

// ItemError is a per-item failure that does not stop the other items.
type ItemError struct {
	Item string
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Item, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// DecomposeAll decomposes each item's daily revenue over a zero-filled
// calendar from its first to its last sale day.
func DecomposeAll(daily []aggregate.ItemDailyRevenue, opts Options) ([]models.DecompositionRecord, []ItemError) {
	series := aggregate.ByItem(daily)
	items := make([]string, 0, len(series))
	for item := range series {
		items = append(items, item)
	}
	sort.Strings(items)

	var (
		out  []models.DecompositionRecord
		errs []ItemError
	)
	for _, item := range items {
		points := series[item]
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		first, last := points[0].Date, points[len(points)-1].Date
		days := int(last.Sub(first).Hours()/24) + 1

		y := make([]float64, days)
		for _, p := range points {
			y[int(p.Date.Sub(first).Hours()/24)] += p.Revenue
		}

		res, err := Decompose(y, opts)
		if err != nil {
			errs = append(errs, ItemError{Item: item, Err: err})
			continue
		}
		for i := range y {
			out = append(out, models.DecompositionRecord{
				Date:     first.AddDate(0, 0, i),
				Item:     item,
				Observed: res.Observed[i],
				Trend:    res.Trend[i],
				Seasonal: res.Seasonal[i],
				Residual: res.Residual[i],
			})
		}
	}
	return out, errs
}
