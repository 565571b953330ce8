package ingest

import "math"

// Integrity statuses.
const (
	StatusMatch            = "MATCH"
	StatusImmaterial       = "IMMATERIAL"
	StatusMaterialMismatch = "MATERIAL_MISMATCH"
)

// materialityPct is the relative difference above which a reported total
// no longer agrees with its components.
const materialityPct = 0.5

// Checkpoint compares a total reported by a source with the one derived
// from its components.
type Checkpoint struct {
	Name       string
	Reported   float64
	Calculated float64
	Variance   float64
	Status     string
}

// CheckTotal classifies the difference between a reported and a calculated
// total.
func CheckTotal(name string, reported, calculated float64) Checkpoint {
	diff := calculated - reported
	status := StatusMatch
	if math.Abs(diff) > 1e-9 {
		pct := 100.0
		if reported != 0 {
			pct = diff / reported * 100
		}
		if math.Abs(pct) > materialityPct {
			status = StatusMaterialMismatch
		} else {
			status = StatusImmaterial
		}
	}
	return Checkpoint{Name: name, Reported: reported, Calculated: calculated, Variance: diff, Status: status}
}
