package ingest

import (
	"fmt"
	"strings"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/models"
)

func requireFields(t *Table, fields ...string) error {
	for _, f := range fields {
		if !t.HasField(f) {
			return &SchemaError{Source: t.Source, Field: f}
		}
	}
	return nil
}

// missing returns the first field the record lacks, or "".
func missing(rec Record, fields ...string) string {
	for _, f := range fields {
		if !rec.Has(f) {
			return f
		}
	}
	return ""
}

// Transactions builds sales from a normalized table.
func Transactions(t *Table) ([]models.Transaction, []Issue, error) {
	if err := requireFields(t, "date", "item", "price"); err != nil {
		return nil, nil, err
	}

	var (
		out    []models.Transaction
		issues []Issue
	)
	for _, rec := range t.Records {
		if f := missing(rec, "date", "item", "price"); f != "" {
			issues = append(issues, Issue{Source: t.Source, Line: rec.Line, Field: f, Msg: "empty value"})
			continue
		}
		out = append(out, models.Transaction{
			Date:  rec.Dates["date"],
			Item:  rec.Strings["item"],
			Price: rec.Numbers["price"],
		})
	}
	return out, issues, nil
}

// Purchases builds received batches. The subtotal is quantity times unit
// cost unless the source provides it; a provided subtotal that disagrees
// materially is kept and reported. A row with a subtotal and no unit cost
// takes its unit cost from subtotal / quantity.
func Purchases(t *Table) ([]models.Purchase, []Issue, error) {
	if err := requireFields(t, "date", "item", "quantity"); err != nil {
		return nil, nil, err
	}
	if !t.HasField("unit_cost") && !t.HasField("subtotal") {
		return nil, nil, &SchemaError{Source: t.Source, Field: "unit_cost"}
	}

	var (
		out    []models.Purchase
		issues []Issue
	)
	for _, rec := range t.Records {
		if f := missing(rec, "date", "item", "quantity"); f != "" {
			issues = append(issues, Issue{Source: t.Source, Line: rec.Line, Field: f, Msg: "empty value"})
			continue
		}
		p := models.Purchase{
			Date:     rec.Dates["date"],
			Item:     rec.Strings["item"],
			Quantity: rec.Numbers["quantity"],
		}
		given, hasSubtotal := rec.Numbers["subtotal"]
		unitCost, hasUnitCost := rec.Numbers["unit_cost"]

		switch {
		case hasUnitCost && hasSubtotal:
			p.UnitCost, p.Subtotal = unitCost, given
			computed := p.Quantity * unitCost
			if check := CheckTotal("subtotal", given, computed); check.Status == StatusMaterialMismatch {
				issues = append(issues, Issue{
					Source: t.Source, Line: rec.Line, Field: "subtotal",
					Msg: fmt.Sprintf("given %.2f, quantity x unit cost %.2f", given, computed),
				})
			}
		case hasUnitCost:
			p.UnitCost, p.Subtotal = unitCost, p.Quantity*unitCost
		case hasSubtotal:
			p.Subtotal = given
			if p.Quantity != 0 {
				p.UnitCost = given / p.Quantity
			}
		default:
			issues = append(issues, Issue{Source: t.Source, Line: rec.Line, Field: "unit_cost", Msg: "empty value"})
			continue
		}
		out = append(out, p)
	}
	return out, issues, nil
}

// Employees builds payroll lines.
func Employees(t *Table) ([]models.Employee, []Issue, error) {
	if err := requireFields(t, "date", "employee_id", "position", "wage"); err != nil {
		return nil, nil, err
	}

	var (
		out    []models.Employee
		issues []Issue
	)
	for _, rec := range t.Records {
		if f := missing(rec, "date", "employee_id", "position", "wage"); f != "" {
			issues = append(issues, Issue{Source: t.Source, Line: rec.Line, Field: f, Msg: "empty value"})
			continue
		}
		out = append(out, models.Employee{
			Date:       rec.Dates["date"],
			EmployeeID: rec.Strings["employee_id"],
			Position:   rec.Strings["position"],
			Wage:       rec.Numbers["wage"],
		})
	}
	return out, issues, nil
}

// BalanceSheetFrom reads a wide balance sheet: a label column followed by
// one column per quarter. Quarters keep source order unless the layout
// lists them explicitly. Empty or unparsable cells are marked not present.
func BalanceSheetFrom(raw *RawTable, schema config.SourceSchema) (*models.BalanceSheet, []Issue, error) {
	layout := schema.Wide
	if layout == nil {
		return nil, nil, fmt.Errorf("%s: schema has no wide layout", raw.Source)
	}
	label := raw.Column(layout.LabelColumn)
	if label < 0 {
		return nil, nil, &SchemaError{Source: raw.Source, Field: layout.LabelColumn}
	}

	var cols []int
	bs := &models.BalanceSheet{Rows: make(map[string][]float64), Present: make(map[string][]bool)}
	if len(layout.Quarters) > 0 {
		for _, q := range layout.Quarters {
			i := raw.Column(q)
			if i < 0 {
				return nil, nil, &SchemaError{Source: raw.Source, Field: "quarter column", Quarter: q}
			}
			cols = append(cols, i)
			bs.Quarters = append(bs.Quarters, q)
		}
	} else {
		for i, h := range raw.Header {
			if i == label || h == "" {
				continue
			}
			cols = append(cols, i)
			bs.Quarters = append(bs.Quarters, h)
		}
	}

	format := schema.Format
	if raw.PlainNumbers {
		format = config.FileFormat{}
	}

	var issues []Issue
	for n, row := range raw.Rows {
		heading := strings.TrimSpace(row[label])
		if heading == "" {
			continue
		}
		if _, dup := bs.Rows[heading]; dup {
			issues = append(issues, Issue{Source: raw.Source, Line: n + 2, Field: heading, Msg: "duplicate heading ignored"})
			continue
		}
		values := make([]float64, len(cols))
		present := make([]bool, len(cols))
		for k, c := range cols {
			cell := strings.TrimSpace(row[c])
			if cell == "" {
				continue
			}
			v, err := ParseNumber(cell, format)
			if err != nil {
				issues = append(issues, Issue{Source: raw.Source, Line: n + 2, Field: heading, Msg: err.Error()})
				continue
			}
			values[k] = v
			present[k] = true
		}
		bs.Rows[heading] = values
		bs.Present[heading] = present
	}
	return bs, issues, nil
}
