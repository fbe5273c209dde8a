package models

import "time"

// OwedDay is a calendar day the engine considers due for verification.
type OwedDay struct {
	Weekday int       `json:"weekday"`
	Date    time.Time `json:"date"`
}

// SummaryRow reports one (client, activity) pair in the weekly summary.
// Rows with an empty visit-day set are still emitted so operators can spot
// clients without a configured schedule.
type SummaryRow struct {
	ClientDNI      int64     `json:"dni"`
	ClientName     string    `json:"client_name"`
	ClientSince    time.Time `json:"client_since"`
	ActivityName   string    `json:"activity"`
	PendingClasses int       `json:"pending_classes"`
	VisitDays      []int     `json:"visit_days"`
	OwedDays       []OwedDay `json:"owed_days"`
	HasPending     bool      `json:"has_pending"`
}

// WeeklySummary is the read-path result for an evaluation date.
type WeeklySummary struct {
	EvaluationDate time.Time    `json:"evaluation_date"`
	WeekStart      time.Time    `json:"week_start"`
	WeekEnd        time.Time    `json:"week_end"`
	Rows           []SummaryRow `json:"rows"`
}

// ConfirmationSuccess records one committed verification day.
type ConfirmationSuccess struct {
	DNI          int64     `json:"dni"`
	ActivityName string    `json:"activity"`
	Date         time.Time `json:"date"`
}

// ConfirmationFailure records one skipped or degraded day with the reason
// operators use to fix the data by hand.
type ConfirmationFailure struct {
	DNI          int64     `json:"dni"`
	ActivityName string    `json:"activity"`
	Date         time.Time `json:"date"`
	Reason       string    `json:"reason"`
}

// ConfirmationResult aggregates a batch confirmation run. Partials hold
// days where the log entry was written but the ledger counters were not
// updated; they are kept apart from Failures so drift is queryable.
type ConfirmationResult struct {
	VerificationsCreated int                   `json:"verifications_created"`
	CountersUpdated      int                   `json:"counters_updated"`
	Successes            []ConfirmationSuccess `json:"successes"`
	Failures             []ConfirmationFailure `json:"failures"`
	Partials             []ConfirmationFailure `json:"partials,omitempty"`
}
