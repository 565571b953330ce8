package aggregate

import (
	"sort"
	"time"

	"smallbiz_analytics/pkg/models"
)

// InventoryBalance tracks stock per item over a gapless daily calendar
// covering both sources. Purchases add their quantity and each sale removes
// one unit. Items whose movements are all zero are left out.
func InventoryBalance(purchases []models.Purchase, tx []models.Transaction) []InventoryPoint {
	changes := make(map[dayItem]float64)
	active := make(map[string]bool)
	var first, last time.Time

	observe := func(d time.Time) {
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}

	for _, p := range purchases {
		d := truncate(p.Date)
		observe(d)
		changes[dayItem{d, p.Item}] += p.Quantity
		if p.Quantity != 0 {
			active[p.Item] = true
		}
	}
	for _, t := range tx {
		d := truncate(t.Date)
		observe(d)
		changes[dayItem{d, t.Item}]--
		active[t.Item] = true
	}
	if len(active) == 0 {
		return nil
	}

	items := make([]string, 0, len(active))
	for item := range active {
		items = append(items, item)
	}
	sort.Strings(items)

	balance := make(map[string]float64, len(items))
	var out []InventoryPoint
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		for _, item := range items {
			change := changes[dayItem{d, item}]
			balance[item] += change
			out = append(out, InventoryPoint{Date: d, Item: item, NetChange: change, Balance: balance[item]})
		}
	}
	return out
}
