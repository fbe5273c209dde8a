package models

import "time"

// VerificationMethod distinguishes how a class visit was asserted.
type VerificationMethod string

const (
	// MethodPresencial records an in-person check by an operator.
	MethodPresencial VerificationMethod = "presencial"
	// MethodAutomatica records a visit derived by the reconciliation engine.
	MethodAutomatica VerificationMethod = "automatica"
)

// Valid returns true when the method is a supported value.
func (m VerificationMethod) Valid() bool {
	return m == MethodPresencial || m == MethodAutomatica
}

// KindRegularClass tags entries written by the daily cadence engine.
const KindRegularClass = "clase_regular"

// VerificationEntry is one row of the append-only verification log.
// VerifiedOn is the calendar day being credited, which is not necessarily
// the day the row was written.
type VerificationEntry struct {
	ID           string             `db:"id" json:"id"`
	ClientDNI    int64              `db:"dni" json:"dni"`
	ClientName   string             `db:"client_name" json:"client_name"`
	ActivityName string             `db:"activity_name" json:"activity_name"`
	VerifiedOn   time.Time          `db:"verified_on" json:"verified_on"`
	Method       VerificationMethod `db:"method" json:"method"`
	Kind         *string            `db:"kind" json:"kind,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// VerificationFilter scopes log listings and exports.
type VerificationFilter struct {
	DNI          *int64
	ActivityName string
	Method       *VerificationMethod
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
