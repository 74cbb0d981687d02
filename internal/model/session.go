package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is one dated event.  At most one session exists per date and the
// venue reference is fixed at creation.
//
// Fields:
//
//	ID           – primary key identifier.
//	Date         – calendar date of the session (unique).
//	FeeCollected – amount collected at the door, >= 0.
//	VenueID      – venue the session was held at.
//	Notes        – free text.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Session struct {
	ID           int64           `json:"id"`            // sessions.id
	Date         Date            `json:"date"`          // sessions.date
	FeeCollected decimal.Decimal `json:"fee_collected"` // sessions.fee_collected
	VenueID      int64           `json:"venue_id"`      // sessions.venue_id
	Notes        string          `json:"notes"`         // sessions.notes
	CreatedAt    time.Time       `json:"created_at"`    // sessions.created_at
	UpdatedAt    time.Time       `json:"updated_at"`    // sessions.updated_at
}

// SessionDetail bundles a session with the line items it owns.
type SessionDetail struct {
	Session
	LineItems []LineItem `json:"line_items"`
}
