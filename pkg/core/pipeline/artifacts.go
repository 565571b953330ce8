package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"smallbiz_analytics/pkg/core/export"
)

// Artifact file names written by WriteArtifacts.
const (
	ComparisonCSV = "comparacao_precos.csv"
	ProjectionCSV = "projecao.csv"
	Workbook      = "relatorio.xlsx"
	ReportMD      = "relatorio.md"
	ReportHTML    = "relatorio.html"
)

const reportTitle = "Relatório de análise"

// Summary converts a report into the export view.
func (r *Report) Summary(currency string) export.Summary {
	s := export.Summary{
		Title:          reportTitle,
		RunID:          r.RunID,
		Currency:       currency,
		Comparison:     r.Comparison,
		Elasticities:   r.Elasticities,
		AnnualCashFlow: r.AnnualCashFlow,
		Liquidity:      r.Liquidity,
		Projection:     r.Projection,
		Payroll:        r.Payroll,
	}
	if r.Rates != nil {
		s.Rates = &export.RateSummary{
			Benchmark:    r.Rates.Benchmark,
			Inflation:    r.Rates.Inflation,
			ProjectedNPV: r.Rates.ProjectedNPV,
		}
	}
	for _, issue := range r.Issues {
		s.Issues = append(s.Issues, issue.String())
	}
	return s
}

// WriteArtifacts writes the CSV deliverables, the workbook and the
// Markdown/HTML report into dir, creating it if needed. It returns the
// paths written.
func WriteArtifacts(r *Report, dir, currency string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	// 1. Render everything before writing any file
	files := make(map[string][]byte)
	var buf bytes.Buffer
	if err := export.WriteComparisonCSV(&buf, r.Comparison); err != nil {
		return nil, err
	}
	files[ComparisonCSV] = bytes.Clone(buf.Bytes())

	buf.Reset()
	if err := export.WriteProjectionCSV(&buf, r.Projection); err != nil {
		return nil, err
	}
	files[ProjectionCSV] = bytes.Clone(buf.Bytes())

	buf.Reset()
	sheets := []export.Sheet{
		export.ComparisonSheet(r.Comparison),
		export.ProjectionSheet(r.Projection),
		export.CashFlowSheet("Fluxo mensal", r.MonthlyCashFlow),
		export.CashFlowSheet("Fluxo anual", r.AnnualCashFlow),
	}
	if len(r.Liquidity) > 0 {
		sheets = append(sheets, export.LiquiditySheet(r.Liquidity))
	}
	if err := export.WriteXLSX(&buf, sheets...); err != nil {
		return nil, err
	}
	files[Workbook] = bytes.Clone(buf.Bytes())

	md := export.RenderMarkdown(r.Summary(currency))
	files[ReportMD] = []byte(md)
	page, err := export.RenderHTML(reportTitle, md)
	if err != nil {
		return nil, err
	}
	files[ReportHTML] = []byte(page)

	// 2. Write in a fixed order
	var written []string
	for _, name := range []string{ComparisonCSV, ProjectionCSV, Workbook, ReportMD, ReportHTML} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
