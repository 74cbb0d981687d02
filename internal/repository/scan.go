package repository

import (
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const venueColumns = `id, owner, nightly_fee, created_at`

func scanVenue(s rowScanner) (model.Venue, error) {
	var v model.Venue
	err := s.Scan(&v.ID, &v.Owner, &v.NightlyFee, &v.CreatedAt)
	return v, err
}

const sessionColumns = `id, date, fee_collected, venue_id, notes, created_at, updated_at`

func scanSession(s rowScanner) (model.Session, error) {
	var ses model.Session
	err := s.Scan(&ses.ID, &ses.Date, &ses.FeeCollected, &ses.VenueID, &ses.Notes, &ses.CreatedAt, &ses.UpdatedAt)
	return ses, err
}

const lineItemColumns = `id, session_id, category, description, amount, created_at, updated_at`

func scanLineItem(s rowScanner) (model.LineItem, error) {
	var (
		li        model.LineItem
		sessionID *int64
		category  string
	)
	if err := s.Scan(&li.ID, &sessionID, &category, &li.Description, &li.Amount, &li.CreatedAt, &li.UpdatedAt); err != nil {
		return li, err
	}
	li.SessionID = sessionID
	li.Category = model.Category(category)
	return li, nil
}
