package pipeline

import (
	"errors"
	"fmt"

	"smallbiz_analytics/pkg/core/calc"
	"smallbiz_analytics/pkg/core/demand"
	"smallbiz_analytics/pkg/core/elasticity"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/core/projection"
	"smallbiz_analytics/pkg/core/seasonal"
	"smallbiz_analytics/pkg/core/valuation"
)

// Kind classifies an issue.
type Kind string

const (
	KindInsufficientData Kind = "insufficient_data"
	KindDegenerate       Kind = "degenerate"
	KindNoConvergence    Kind = "no_convergence"
	KindSchema           Kind = "schema"
	KindExternal         Kind = "external"
	KindData             Kind = "data"
)

// Stage names, as they appear in logs and issues.
const (
	StageIngest     = "ingest"
	StageAggregate  = "aggregate"
	StageElasticity = "elasticity"
	StageDemand     = "demand"
	StageSeasonal   = "seasonal"
	StageFinance    = "finance"
	StageProjection = "projection"
	StageRates      = "rates"
)

// Issue is a failure that was isolated instead of aborting the run.
// Subject is the item, quarter or source it concerns; empty means the
// whole stage.
type Issue struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject,omitempty"`
	Kind    Kind   `json:"kind"`
	Err     error  `json:"-"`
}

func (i Issue) String() string {
	if i.Subject != "" {
		return fmt.Sprintf("%s/%s [%s]: %v", i.Stage, i.Subject, i.Kind, i.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", i.Stage, i.Kind, i.Err)
}

// classify maps package errors onto issue kinds, falling back to def.
func classify(err error, def Kind) Kind {
	var (
		schemaErr *ingest.SchemaError
		statusErr *ingest.StatusError
	)
	switch {
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &statusErr), errors.Is(err, ingest.ErrNoData):
		return KindExternal
	case errors.Is(err, elasticity.ErrInsufficientData),
		errors.Is(err, demand.ErrInsufficientData),
		errors.Is(err, seasonal.ErrInsufficientData),
		errors.Is(err, elasticity.ErrNoCurrentPrice),
		errors.Is(err, projection.ErrNoHistory):
		return KindInsufficientData
	case errors.Is(err, elasticity.ErrDegenerate),
		errors.Is(err, calc.ErrDegenerate):
		return KindDegenerate
	case errors.Is(err, elasticity.ErrNonPositiveRows):
		return KindData
	case errors.Is(err, demand.ErrNoConvergence),
		errors.Is(err, valuation.ErrNoConvergence):
		return KindNoConvergence
	}
	return def
}
