package calc

import (
	"fmt"
	"math"

	"smallbiz_analytics/pkg/models"
)

// VerificationResult holds the status of integrity checks
type VerificationResult struct {
	IsBalanced bool
	BalanceGap float64
	Warnings   []string
}

// CheckRollup verifies that coarse cash-flow periods carry the same totals
// as the fine ones they were built from.
func CheckRollup(fine, coarse []models.CashFlowRecord) VerificationResult {
	var fineNet, coarseNet float64
	for _, r := range fine {
		fineNet += r.NetIncome
	}
	for _, r := range coarse {
		coarseNet += r.NetIncome
	}
	gap := fineNet - coarseNet
	isBalanced := math.Abs(gap) < 0.01

	var warnings []string
	if !isBalanced {
		warnings = append(warnings, fmt.Sprintf("Net income roll-up out of balance by %.2f", gap))
	}
	for _, r := range coarse {
		if math.Abs(r.Revenue-r.Expense-r.NetIncome) >= 0.01 {
			warnings = append(warnings, fmt.Sprintf("Period %s: revenue - expense != net income", r.Period))
		}
	}

	return VerificationResult{
		IsBalanced: isBalanced && len(warnings) == 0,
		BalanceGap: gap,
		Warnings:   warnings,
	}
}
