package pipeline

import (
	"errors"
	"fmt"
	"io/fs"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/models"
)

// Inputs are the typed records of one run. Only Transactions is required;
// stages that need a missing source are skipped.
type Inputs struct {
	Transactions []models.Transaction
	Purchases    []models.Purchase
	BalanceSheet *models.BalanceSheet
	Employees    []models.Employee

	// Issues are row-level findings from ingestion, carried into the report.
	Issues []ingest.Issue
}

// LoadInputs reads every configured source. The sales source must load;
// an optional source that is missing or fails to load is recorded as an
// issue and left empty, so only the sections that need it are skipped.
func LoadInputs(settings *config.Settings, schemas *config.Schemas) (*Inputs, error) {
	in := &Inputs{}

	// 1. Sales
	table, err := readTable(settings.SalesPath, schemas.Sales, in)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	tx, issues, err := ingest.Transactions(table)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	in.Transactions = tx
	in.Issues = append(in.Issues, issues...)

	// 2. Purchases
	loadOptional(settings.PurchasesPath, schemas.Purchases, in, func(t *ingest.Table) ([]ingest.Issue, error) {
		rows, issues, err := ingest.Purchases(t)
		if err == nil {
			in.Purchases = rows
		}
		return issues, err
	})

	// 3. Employees
	loadOptional(settings.EmployeesPath, schemas.Employees, in, func(t *ingest.Table) ([]ingest.Issue, error) {
		rows, issues, err := ingest.Employees(t)
		if err == nil {
			in.Employees = rows
		}
		return issues, err
	})

	// 4. Balance sheet (wide layout, not normalized row by row)
	if settings.BalancePath != "" {
		raw, err := ingest.ReadFile(settings.BalancePath, schemas.Balance.Name, schemas.Balance.Format)
		if err != nil {
			in.Issues = append(in.Issues, skipped(schemas.Balance.Name, settings.BalancePath, err))
			return in, nil
		}
		bs, issues, err := ingest.BalanceSheetFrom(raw, schemas.Balance)
		in.Issues = append(in.Issues, issues...)
		if err != nil {
			in.Issues = append(in.Issues, skipped(schemas.Balance.Name, settings.BalancePath, err))
		} else {
			in.BalanceSheet = bs
		}
	}

	return in, nil
}

func readTable(path string, schema config.SourceSchema, in *Inputs) (*ingest.Table, error) {
	raw, err := ingest.ReadFile(path, schema.Name, schema.Format)
	if err != nil {
		return nil, err
	}
	table, issues := ingest.Normalize(raw, schema)
	in.Issues = append(in.Issues, issues...)
	return table, nil
}

// loadOptional reads and builds one optional source. Failures never
// propagate; they become a source-level issue.
func loadOptional(path string, schema config.SourceSchema, in *Inputs, build func(*ingest.Table) ([]ingest.Issue, error)) {
	if path == "" {
		return
	}
	table, err := readTable(path, schema, in)
	if err != nil {
		in.Issues = append(in.Issues, skipped(schema.Name, path, err))
		return
	}
	issues, err := build(table)
	in.Issues = append(in.Issues, issues...)
	if err != nil {
		in.Issues = append(in.Issues, skipped(schema.Name, path, err))
	}
}

func skipped(source, path string, err error) ingest.Issue {
	if errors.Is(err, fs.ErrNotExist) {
		return ingest.Issue{Source: source, Msg: fmt.Sprintf("%s not found, source skipped", path)}
	}
	var schemaErr *ingest.SchemaError
	if errors.As(err, &schemaErr) {
		return ingest.Issue{Source: source, Field: schemaErr.Field, Msg: fmt.Sprintf("%v, source skipped", err)}
	}
	return ingest.Issue{Source: source, Msg: fmt.Sprintf("%v, source skipped", err)}
}
