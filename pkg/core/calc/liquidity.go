package calc

import (
	"fmt"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/models"
)

// QuarterError is a quarter whose ratios could not be computed.
type QuarterError struct {
	Quarter string
	Err     error
}

func (e QuarterError) Error() string { return fmt.Sprintf("%s: %v", e.Quarter, e.Err) }
func (e QuarterError) Unwrap() error { return e.Err }

// Liquidity computes current, quick and immediate ratios for every quarter
// in source order. A heading missing for any quarter fails the whole
// table with *ingest.SchemaError; a quarter with zero current liabilities
// is skipped and reported.
func Liquidity(bs *models.BalanceSheet, headings config.Headings) ([]models.LiquidityRecord, []QuarterError, error) {
	source := "balance"
	needed := []string{headings.CurrentAssets, headings.CurrentLiabilities, headings.Inventory, headings.Cash}

	// 1. Validate every heading for every quarter before computing anything
	values := make([][4]float64, len(bs.Quarters))
	for q, quarter := range bs.Quarters {
		for h, heading := range needed {
			v, ok := bs.Value(heading, q)
			if !ok {
				return nil, nil, &ingest.SchemaError{Source: source, Field: heading, Quarter: quarter}
			}
			values[q][h] = v
		}
	}

	// 2. Ratios per quarter
	var (
		out  []models.LiquidityRecord
		errs []QuarterError
	)
	for q, quarter := range bs.Quarters {
		ca, cl, inv, cash := values[q][0], values[q][1], values[q][2], values[q][3]
		current, err := CurrentRatio(ca, cl)
		if err != nil {
			errs = append(errs, QuarterError{Quarter: quarter, Err: err})
			continue
		}
		quick, _ := QuickRatio(ca, inv, cl)
		immediate, _ := ImmediateRatio(cash, cl)
		out = append(out, models.LiquidityRecord{
			Quarter:   quarter,
			Current:   current,
			Quick:     quick,
			Immediate: immediate,
		})
	}
	return out, errs, nil
}
