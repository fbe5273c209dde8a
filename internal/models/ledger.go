package models

import (
	"time"

	"github.com/lib/pq"
)

// LedgerEntry is the denormalized per-(client, activity) record the
// verification engine works against. It duplicates counters from the client
// registry so reconciliation never has to unpack activity lists.
//
// The engine assumes at most one entry per (dni, activity_name); the replace
// path enforces it by deleting before re-inserting, and the table carries a
// unique index as a backstop.
type LedgerEntry struct {
	ID               string        `db:"id" json:"id"`
	ClientDNI        int64         `db:"dni" json:"dni"`
	ActivityName     string        `db:"activity_name" json:"activity_name"`
	PendingClasses   int           `db:"pending_classes" json:"pending_classes"`
	CompletedClasses int           `db:"completed_classes" json:"completed_classes"`
	MonthlyClasses   int           `db:"monthly_classes" json:"monthly_classes"`
	WeeklyTally      int           `db:"weekly_tally" json:"weekly_tally"`
	VisitDays        pq.Int64Array `db:"visit_days" json:"visit_days"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// VisitDaySet returns the normalized weekday set for the entry.
func (e LedgerEntry) VisitDaySet() map[int]struct{} {
	set := make(map[int]struct{}, len(e.VisitDays))
	for _, day := range e.VisitDays {
		if normalized, ok := NormalizeWeekday(day); ok {
			set[normalized] = struct{}{}
		}
	}
	return set
}
