package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"smallbiz_analytics/pkg/models"
)

const utf8BOM = "\ufeff"

// ComparisonHeaders are the column titles of the comparison deliverable.
var ComparisonHeaders = []string{
	"Item",
	"Preço atual (R$)",
	"Preço ótimo (R$)",
	"Diferença (%)",
	"Quantidade estimada",
	"Receita estimada (R$)",
}

// ProjectionHeaders are the column titles of the projection deliverable.
var ProjectionHeaders = []string{
	"Ano",
	"Receita (R$)",
	"Despesa (R$)",
	"Margem (R$)",
	"Projetado",
}

// WriteComparisonCSV writes rows as ';'-separated CSV with ',' decimals,
// two decimal places and a UTF-8 byte order mark.
func WriteComparisonCSV(w io.Writer, rows []models.ComparisonRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Item,
			plainDecimal(r.CurrentPrice),
			plainDecimal(r.OptimalPrice),
			plainDecimal(r.PercentDifference),
			plainDecimal(r.ExpectedQuantity),
			plainDecimal(r.EstimatedRevenue),
		})
	}
	return writeCSV(w, ComparisonHeaders, records)
}

// WriteProjectionCSV writes the projection table in the same dialect as
// WriteComparisonCSV.
func WriteProjectionCSV(w io.Writer, rows []models.ProjectionRecord) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		projected := "não"
		if r.Projected {
			projected = "sim"
		}
		records = append(records, []string{
			strconv.Itoa(r.Year),
			plainDecimal(r.Revenue),
			plainDecimal(r.Expense),
			plainDecimal(r.Margin),
			projected,
		})
	}
	return writeCSV(w, ProjectionHeaders, records)
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
