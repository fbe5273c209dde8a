package models

import (
	"time"

	"github.com/lib/pq"
)

// Client is a studio member. DNI is the business key: the enrollment ledger
// and the verification log both reference clients by DNI, not by row id.
type Client struct {
	ID        string    `db:"id" json:"id"`
	DNI       int64     `db:"dni" json:"dni"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClientActivity is one enrollment inside a client's activity list.
// Activities are matched by name, so renaming an activity orphans its
// ledger entries; the registry treats the name as immutable.
type ClientActivity struct {
	ID             string        `db:"id" json:"id"`
	ClientDNI      int64         `db:"dni" json:"dni"`
	ActivityName   string        `db:"activity_name" json:"activity_name"`
	Rate           float64       `db:"rate" json:"rate"`
	MonthlyClasses int           `db:"monthly_classes" json:"monthly_classes"`
	PendingClasses int           `db:"pending_classes" json:"pending_classes"`
	Instructor     *string       `db:"instructor" json:"instructor,omitempty"`
	VisitDays      pq.Int64Array `db:"visit_days" json:"visit_days"`
}

// ClientDetail bundles a client with its activity list.
type ClientDetail struct {
	Client
	Activities []ClientActivity `json:"activities"`
}

// ClientFilter scopes registry listings.
type ClientFilter struct {
	Search    string
	Activity  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
