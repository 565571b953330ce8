package export

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"smallbiz_analytics/pkg/core/utils"
	"smallbiz_analytics/pkg/models"
)

// RateSummary carries the external reference rates used in a run.
type RateSummary struct {
	Benchmark    float64 // annual, decimal
	Inflation    float64 // trailing 12 months, decimal
	ProjectedNPV float64 // projected margins discounted at Benchmark
}

// Summary is everything the report shows. Tables are rendered in the
// order given; empty tables print a placeholder line.
type Summary struct {
	Title          string
	RunID          string
	Currency       string
	Comparison     []models.ComparisonRow
	Elasticities   []models.ElasticityRecord
	AnnualCashFlow []models.CashFlowRecord
	Liquidity      []models.LiquidityRecord
	Projection     []models.ProjectionRecord
	Payroll        []models.PositionPayroll
	Rates          *RateSummary
	Issues         []string
}

const emptySection = "_Sem dados._\n"

// RenderMarkdown renders the summary report as Markdown.
func RenderMarkdown(s Summary) string {
	title := s.Title
	if title == "" {
		title = "Relatório de análise"
	}
	money := func(v float64) string { return Money(s.Currency, v) }

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if s.RunID != "" {
		fmt.Fprintf(&sb, "Execução `%s`\n\n", s.RunID)
	}

	// 1. Pricing
	section(&sb, "Comparação de preços", ComparisonHeaders, len(s.Comparison), func(i int) []string {
		r := s.Comparison[i]
		return []string{r.Item, money(r.CurrentPrice), money(r.OptimalPrice), Percent(r.PercentDifference), Number(r.ExpectedQuantity), money(r.EstimatedRevenue)}
	})
	section(&sb, "Elasticidade no preço atual", []string{"Item", "Preço atual", "Quantidade prevista", "Elasticidade"}, len(s.Elasticities), func(i int) []string {
		r := s.Elasticities[i]
		return []string{r.Item, money(r.CurrentPrice), Number(r.PredictedQuantity), Number(r.Elasticity)}
	})

	// 2. Finance
	section(&sb, "Fluxo de caixa anual", []string{"Ano", "Receita", "Despesa", "Lucro líquido", "Margem"}, len(s.AnnualCashFlow), func(i int) []string {
		r := s.AnnualCashFlow[i]
		return []string{r.Period, money(r.Revenue), money(r.Expense), money(r.NetIncome), Percent(r.MarginPct)}
	})
	section(&sb, "Liquidez", []string{"Trimestre", "Corrente", "Seca", "Imediata"}, len(s.Liquidity), func(i int) []string {
		r := s.Liquidity[i]
		return []string{r.Quarter, Number(r.Current), Number(r.Quick), Number(r.Immediate)}
	})
	section(&sb, "Projeção", []string{"Ano", "Receita", "Despesa", "Margem", "Tipo"}, len(s.Projection), func(i int) []string {
		r := s.Projection[i]
		kind := "histórico"
		if r.Projected {
			kind = "projetado"
		}
		return []string{strconv.Itoa(r.Year), money(r.Revenue), money(r.Expense), money(r.Margin), kind}
	})
	section(&sb, "Folha de pagamento", []string{"Ano", "Cargo", "Funcionários", "Total", "Média"}, len(s.Payroll), func(i int) []string {
		r := s.Payroll[i]
		return []string{strconv.Itoa(r.Year), r.Position, strconv.Itoa(r.Headcount), money(r.TotalWages), money(r.AverageWage)}
	})

	// 3. Reference rates
	if s.Rates != nil {
		sb.WriteString("## Taxas de referência\n\n")
		fmt.Fprintf(&sb, "- Selic: %s\n", Percent(s.Rates.Benchmark*100))
		fmt.Fprintf(&sb, "- IPCA 12 meses: %s\n", Percent(s.Rates.Inflation*100))
		fmt.Fprintf(&sb, "- VPL das margens projetadas: %s\n\n", money(s.Rates.ProjectedNPV))
	}

	// 4. Issues
	if len(s.Issues) > 0 {
		sb.WriteString("## Ocorrências\n\n")
		for _, issue := range s.Issues {
			fmt.Fprintf(&sb, "- %s\n", issue)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func section(sb *strings.Builder, heading string, headers []string, n int, row func(int) []string) {
	fmt.Fprintf(sb, "## %s\n\n", heading)
	if n == 0 {
		sb.WriteString(emptySection)
		sb.WriteString("\n")
		return
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = row(i)
	}
	sb.WriteString(utils.MarkdownTable(headers, rows))
	sb.WriteString("\n")
}

var numericCell = regexp.MustCompile(`^(?:[A-Z]{0,3}\$\s)?-?\d[\d.]*(?:,\d+)?%?$`)

// RenderHTML converts report Markdown to a standalone HTML page. Table
// cells holding numbers get class="num" so they can be right-aligned.
func RenderHTML(title, markdown string) (string, error) {
	body, err := utils.MarkdownToHTML(markdown)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered report: %w", err)
	}
	doc.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if numericCell.MatchString(strings.TrimSpace(cell.Text())) {
			cell.AddClass("num")
		}
	})
	doc.Find("head").AppendHtml(fmt.Sprintf(
		`<meta charset="utf-8"><title>%s</title><style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:2px 6px}td.num{text-align:right}</style>`,
		html.EscapeString(title)))

	page, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}
	return "<!DOCTYPE html>\n" + page, nil
}
