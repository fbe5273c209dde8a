package models

import "time"

// Reasons returned by the daily cadence engine.
const (
	CadenceReasonVerifiedToday  = "verified today"
	CadenceReasonBelowThreshold = "below miss threshold"
	CadenceReasonNoAutoRule     = "plan has no auto-verification rule"
	CadenceReasonSingleClass    = "single-class plan is never auto-verified"
	CadenceReasonNoPending      = "no pending classes"
	CadenceReasonNoLedger       = "no ledger entries"
	CadenceReasonAutoVerified   = "auto-verified after consecutive misses"
)

// CadenceDecision reports the engine's decision for one client.
type CadenceDecision struct {
	DNI                  int64  `json:"dni"`
	ClientName           string `json:"client_name"`
	MissCount            int    `json:"miss_count"`
	MonthlyClasses       int    `json:"monthly_classes"`
	Verified             bool   `json:"verified"`
	VerificationsCreated int    `json:"verifications_created"`
	Reason               string `json:"reason"`
}

// CadenceResult is the outcome of one daily cadence run. MissCounters is the
// full updated counter map, keyed by DNI rendered as a string so it survives
// a JSON round trip; the caller persists it between runs.
type CadenceResult struct {
	Date         time.Time         `json:"date"`
	Skipped      bool              `json:"skipped"`
	SkipReason   string            `json:"skip_reason,omitempty"`
	Decisions    []CadenceDecision `json:"decisions"`
	MissCounters map[string]int    `json:"miss_counters"`
}
