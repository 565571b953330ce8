package aggregate

import (
	"sort"

	"smallbiz_analytics/pkg/models"
)

// PayrollByPosition summarizes the latest payroll year per position:
// distinct employees, total wages and wage per employee.
func PayrollByPosition(employees []models.Employee) []models.PositionPayroll {
	if len(employees) == 0 {
		return nil
	}
	year := 0
	for _, e := range employees {
		if y := e.Date.Year(); y > year {
			year = y
		}
	}

	type acc struct {
		ids   map[string]bool
		total float64
	}
	positions := make(map[string]*acc)
	for _, e := range employees {
		if e.Date.Year() != year {
			continue
		}
		a, ok := positions[e.Position]
		if !ok {
			a = &acc{ids: make(map[string]bool)}
			positions[e.Position] = a
		}
		a.ids[e.EmployeeID] = true
		a.total += e.Wage
	}

	out := make([]models.PositionPayroll, 0, len(positions))
	for pos, a := range positions {
		out = append(out, models.PositionPayroll{
			Year:        year,
			Position:    pos,
			Headcount:   len(a.ids),
			TotalWages:  a.total,
			AverageWage: a.total / float64(len(a.ids)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
