package export

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"smallbiz_analytics/pkg/models"
)

// NumberFormat is applied to every numeric column of an exported sheet.
const NumberFormat = "#,##0.00"

const (
	minColWidth = 8
	maxColWidth = 60
)

// ErrNoSheets is returned when a workbook would be empty.
var ErrNoSheets = errors.New("no sheets to write")

// Sheet is one worksheet of an exported workbook. NumberCols lists the
// zero-based columns that hold float values.
type Sheet struct {
	Name       string
	Headers    []string
	Rows       [][]any
	NumberCols []int
}

// ComparisonSheet builds the "Comparação" worksheet.
func ComparisonSheet(rows []models.ComparisonRow) Sheet {
	s := Sheet{Name: "Comparação", Headers: ComparisonHeaders, NumberCols: []int{1, 2, 3, 4, 5}}
	for _, r := range rows {
		s.Rows = append(s.Rows, []any{
			r.Item,
			round2(r.CurrentPrice),
			round2(r.OptimalPrice),
			round2(r.PercentDifference),
			round2(r.ExpectedQuantity),
			round2(r.EstimatedRevenue),
		})
	}
	return s
}

// ProjectionSheet builds the "Projeção" worksheet.
func ProjectionSheet(rows []models.ProjectionRecord) Sheet {
	s := Sheet{Name: "Projeção", Headers: ProjectionHeaders, NumberCols: []int{1, 2, 3}}
	for _, r := range rows {
		projected := "não"
		if r.Projected {
			projected = "sim"
		}
		s.Rows = append(s.Rows, []any{r.Year, round2(r.Revenue), round2(r.Expense), round2(r.Margin), projected})
	}
	return s
}

// CashFlowSheet builds a cash-flow worksheet named after its granularity.
func CashFlowSheet(name string, rows []models.CashFlowRecord) Sheet {
	s := Sheet{
		Name:       name,
		Headers:    []string{"Período", "Receita (R$)", "Despesa (R$)", "Lucro líquido (R$)", "Margem (%)"},
		NumberCols: []int{1, 2, 3, 4},
	}
	for _, r := range rows {
		s.Rows = append(s.Rows, []any{r.Period, round2(r.Revenue), round2(r.Expense), round2(r.NetIncome), round2(r.MarginPct)})
	}
	return s
}

// LiquiditySheet builds the "Liquidez" worksheet.
func LiquiditySheet(rows []models.LiquidityRecord) Sheet {
	s := Sheet{
		Name:       "Liquidez",
		Headers:    []string{"Trimestre", "Liquidez corrente", "Liquidez seca", "Liquidez imediata"},
		NumberCols: []int{1, 2, 3},
	}
	for _, r := range rows {
		s.Rows = append(s.Rows, []any{r.Quarter, round2(r.Current), round2(r.Quick), round2(r.Immediate)})
	}
	return s
}

// WriteXLSX writes sheets, in order, as a single workbook to w.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	numFmt := NumberFormat
	numberStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s, headerStyle, numberStyle); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.Name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle, numberStyle int) error {
	// 1. Header row
	header := make([]any, len(s.Headers))
	widths := make([]int, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return err
	}
	if len(s.Headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(s.Headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.Name, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	// 2. Data rows
	for r, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
			return err
		}
		for c, v := range row {
			if c >= len(widths) {
				widths = append(widths, 0)
			}
			if n := displayWidth(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	// 3. Number format on numeric columns
	if len(s.Rows) > 0 {
		for _, c := range s.NumberCols {
			top, err := excelize.CoordinatesToCellName(c+1, 2)
			if err != nil {
				return err
			}
			bottom, err := excelize.CoordinatesToCellName(c+1, len(s.Rows)+1)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(s.Name, top, bottom, numberStyle); err != nil {
				return err
			}
		}
	}

	// 4. Column widths and frozen header
	for c, w := range widths {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.Name, name, name, clampWidth(w+2)); err != nil {
			return err
		}
	}
	return f.SetPanes(s.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func displayWidth(v any) int {
	switch x := v.(type) {
	case float64:
		return utf8.RuneCountInString(Number(x))
	default:
		return utf8.RuneCountInString(fmt.Sprint(x))
	}
}

func clampWidth(w int) float64 {
	if w < minColWidth {
		w = minColWidth
	}
	if w > maxColWidth {
		w = maxColWidth
	}
	return float64(w)
}
