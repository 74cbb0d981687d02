// Package queue defines the ledger events exchanged over the message broker,
// the publisher used after successful writes and the consumer that keeps an
// append-only audit log of them.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerQueue is the durable queue all ledger events are routed to.
const LedgerQueue = "ledger.events"

const (
	TypeSessionCreated    = "session.created"
	TypeBackfillCompleted = "backfill.completed"
)

// Event is the envelope published for every ledger change.  Payload holds
// one of the typed payloads below, selected by Type.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// SessionCreated is published once a session and its rent line item have
// been committed together.
type SessionCreated struct {
	SessionID      int64           `json:"session_id"`
	Date           string          `json:"date"`
	FeeCollected   decimal.Decimal `json:"fee_collected"`
	VenueID        int64           `json:"venue_id"`
	VenueOwner     string          `json:"venue_owner"`
	RentLineItemID int64           `json:"rent_line_item_id"`
	RentAmount     decimal.Decimal `json:"rent_amount"`
}

// BackfillCompleted is published at the end of a backfill run.
type BackfillCompleted struct {
	Created       int             `json:"created"`
	Amount        decimal.Decimal `json:"amount"`
	Sessions      int64           `json:"sessions"`
	RentLineItems int64           `json:"rent_line_items"`
	Verified      bool            `json:"verified"`
	DryRun        bool            `json:"dry_run"`
}

// NewEvent wraps payload in an envelope with a fresh id and timestamp.
func NewEvent(typ string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}
