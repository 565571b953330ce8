package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"smallbiz_analytics/pkg/core/config"
)

func schemas(t *testing.T) *config.Schemas {
	t.Helper()
	s, err := config.DefaultSchemas()
	require.NoError(t, err)
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReadCSVStripsBOMAndPads(t *testing.T) {
	in := "\ufeffdate,coffee_name,money,card\n2024-03-01,Latte,38.7\n"
	raw, err := ReadCSV(strings.NewReader(in), "sales", config.FileFormat{Delimiter: ","})
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "coffee_name", "money", "card"}, raw.Header)
	require.Len(t, raw.Rows, 1)
	assert.Equal(t, []string{"2024-03-01", "Latte", "38.7", ""}, raw.Rows[0])
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "sales", config.FileFormat{})
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := ReadFile("sales.parquet", "sales", config.FileFormat{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"date", "coffee_name", "money"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-03-01", "Latte", 38.7}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	raw, err := ReadXLSXFrom(buf, "sales")
	require.NoError(t, err)
	assert.True(t, raw.PlainNumbers)

	table, issues := Normalize(raw, schemas(t).Sales)
	assert.Empty(t, issues)
	tx, _, err := Transactions(table)
	require.NoError(t, err)
	require.Len(t, tx, 1)
	assert.InDelta(t, 38.7, tx[0].Price, 1e-9)
	assert.Equal(t, date(2024, 3, 1), tx[0].Date)
}

func TestNormalizeRenamesAndReportsMissing(t *testing.T) {
	raw := &RawTable{
		Source: "sales",
		Header: []string{"date", "coffee_name", "money", "cash_type"},
		Rows: [][]string{
			{"2024-03-01 10:15:50.520", "Latte", "38.70", "card"},
			{"not a date", "Latte", "38.70", "card"},
			{"", "", "", ""},
		},
	}
	s := schemas(t).Sales
	table, issues := Normalize(raw, s)

	assert.Equal(t, []string{"date", "item", "price"}, table.Fields)
	require.Len(t, table.Records, 1)
	assert.Equal(t, date(2024, 3, 1), table.Records[0].Dates["date"])
	assert.Equal(t, "Latte", table.Records[0].Strings["item"])

	require.Len(t, issues, 1)
	assert.Equal(t, 3, issues[0].Line)
	assert.Equal(t, "date", issues[0].Field)
}

func TestNormalizeMissingColumnIsIssue(t *testing.T) {
	raw := &RawTable{Source: "sales", Header: []string{"date", "money"}, Rows: [][]string{{"2024-03-01", "1"}}}
	table, issues := Normalize(raw, schemas(t).Sales)
	require.Len(t, issues, 1)
	assert.Equal(t, "item", issues[0].Field)

	_, _, err := Transactions(table)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "item", schemaErr.Field)
	assert.Equal(t, "sales", schemaErr.Source)
}

func TestParseDateLayouts(t *testing.T) {
	want := date(2024, 3, 1)
	for _, in := range []string{
		"2024-03-01",
		"2024-03-01 23:59:59",
		"2024-03-01T08:00:00",
		"2024-03-01T08:00:00-03:00",
		"01/03/2024",
		"01/03/2024 12:30",
	} {
		got, err := ParseDate(in, false)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	got, err := ParseDate("45352", true)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseDate("45352", false)
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	br := config.FileFormat{DecimalComma: true, Thousands: "."}
	v, err := ParseNumber("R$ 1.234,56", br)
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, v, 1e-9)

	v, err = ParseNumber("-12,5", br)
	require.NoError(t, err)
	assert.InDelta(t, -12.5, v, 1e-9)

	v, err = ParseNumber("1,234.5", config.FileFormat{Thousands: ","})
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, v, 1e-9)

	_, err = ParseNumber("abc", br)
	assert.Error(t, err)
}

func TestPurchasesSubtotal(t *testing.T) {
	raw := &RawTable{
		Source: "purchases",
		Header: []string{"date_received", "insumo", "quantity_received", "unit_cost", "subtotal"},
		Rows: [][]string{
			{"2024-03-01", "Milk", "10", "4.5", ""},
			{"2024-03-02", "Beans", "2", "50", "100"},
			{"2024-03-03", "Cups", "100", "0.2", "35"},
		},
	}
	table, issues := Normalize(raw, schemas(t).Purchases)
	assert.Empty(t, issues)

	ps, issues, err := Purchases(table)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.InDelta(t, 45.0, ps[0].Subtotal, 1e-9)
	assert.InDelta(t, 100.0, ps[1].Subtotal, 1e-9)
	assert.InDelta(t, 35.0, ps[2].Subtotal, 1e-9)

	require.Len(t, issues, 1)
	assert.Equal(t, 4, issues[0].Line)
	assert.Equal(t, "subtotal", issues[0].Field)
}

func TestPurchasesSubtotalOnly(t *testing.T) {
	raw := &RawTable{
		Source: "purchases",
		Header: []string{"date_received", "insumo", "quantity_received", "subtotal"},
		Rows: [][]string{
			{"2024-03-01", "Milk", "10", "45"},
			{"2024-03-02", "Beans", "0", "12"},
			{"2024-03-03", "Cups", "100", ""},
		},
	}
	table, _ := Normalize(raw, schemas(t).Purchases)

	ps, issues, err := Purchases(table)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.InDelta(t, 45.0, ps[0].Subtotal, 1e-9)
	assert.InDelta(t, 4.5, ps[0].UnitCost, 1e-9)
	assert.InDelta(t, 12.0, ps[1].Subtotal, 1e-9)
	assert.Equal(t, 0.0, ps[1].UnitCost)

	require.Len(t, issues, 1)
	assert.Equal(t, 4, issues[0].Line)
	assert.Equal(t, "unit_cost", issues[0].Field)
}

func TestPurchasesRequiresCostOrSubtotal(t *testing.T) {
	raw := &RawTable{
		Source: "purchases",
		Header: []string{"date_received", "insumo", "quantity_received"},
		Rows:   [][]string{{"2024-03-01", "Milk", "10"}},
	}
	table, _ := Normalize(raw, schemas(t).Purchases)

	_, _, err := Purchases(table)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "unit_cost", schemaErr.Field)
}

func TestEmployees(t *testing.T) {
	raw := &RawTable{
		Source: "employees",
		Header: []string{"data", "funcionario", "cargo", "salario"},
		Rows:   [][]string{{"2024-01-31", "E1", "Barista", "2100"}, {"2024-01-31", "E2", "", "2100"}},
	}
	table, _ := Normalize(raw, schemas(t).Employees)
	es, issues, err := Employees(table)
	require.NoError(t, err)
	require.Len(t, es, 1)
	assert.Equal(t, "Barista", es[0].Position)
	require.Len(t, issues, 1)
	assert.Equal(t, "position", issues[0].Field)
}

func TestBalanceSheetFrom(t *testing.T) {
	in := "Item;1T 2024;2T 2024\n" +
		"Ativo Circulante;2.000,00;3.000,00\n" +
		"Passivo Circulante;1.000,00;\n" +
		"Estoque;500,00;600,00\n"
	raw, err := ReadCSV(strings.NewReader(in), "balance", config.FileFormat{Delimiter: ";"})
	require.NoError(t, err)

	bs, issues, err := BalanceSheetFrom(raw, schemas(t).Balance)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []string{"1T 2024", "2T 2024"}, bs.Quarters)

	v, ok := bs.Value("Ativo Circulante", 0)
	assert.True(t, ok)
	assert.InDelta(t, 2000.0, v, 1e-9)

	_, ok = bs.Value("Passivo Circulante", 1)
	assert.False(t, ok)
	_, ok = bs.Value("Caixa e Equivalentes de Caixa", 0)
	assert.False(t, ok)
}

func TestBalanceSheetMissingLabel(t *testing.T) {
	raw := &RawTable{Source: "balance", Header: []string{"Conta", "1T 2024"}}
	_, _, err := BalanceSheetFrom(raw, schemas(t).Balance)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Item", schemaErr.Field)
}

func TestCheckTotal(t *testing.T) {
	assert.Equal(t, StatusMatch, CheckTotal("x", 100, 100).Status)
	assert.Equal(t, StatusImmaterial, CheckTotal("x", 100, 100.1).Status)
	assert.Equal(t, StatusMaterialMismatch, CheckTotal("x", 100, 110).Status)
	assert.Equal(t, StatusMaterialMismatch, CheckTotal("x", 0, 1).Status)
}
