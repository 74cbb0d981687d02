package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
)

const maxNotesLength = 2000

// Messages returned to callers of CreateSession.
const (
	msgDuplicateDate = "a session already exists for this date"
	msgVenueGone     = "selected venue no longer exists"
	msgVenueMissing  = "selected venue does not exist"
)

// SessionService creates and maintains sessions and their line items.
type SessionService struct {
	db        *sql.DB
	venues    *repository.VenueRepo
	sessions  *repository.SessionRepo
	lineItems *repository.LineItemRepo
	events    EventPublisher
	metrics   *metrics.Metrics
	log       Logger

	// afterPrefetch runs between the venue lookup and the write
	// transaction.  Tests use it to change the venue in that window.
	afterPrefetch func(ctx context.Context, v *model.Venue)
}

func NewSessionService(d Deps) *SessionService {
	return &SessionService{
		db:        d.DB,
		venues:    repository.NewVenueRepo(d.DB, d.Dialect),
		sessions:  repository.NewSessionRepo(d.DB, d.Dialect),
		lineItems: repository.NewLineItemRepo(d.DB, d.Dialect),
		events:    d.Events,
		metrics:   d.Metrics,
		log:       d.logger("session"),
	}
}

// CreateSessionInput is the caller's request for a new session.
type CreateSessionInput struct {
	Date         string          `json:"date"`
	FeeCollected decimal.Decimal `json:"fee_collected"`
	VenueID      int64           `json:"venue_id"`
	Notes        string          `json:"notes"`
}

// CreateSession stores a session and its rent line item atomically.  The
// rent amount is the venue's nightly fee as read just before the write
// transaction; it is never recomputed afterwards.  A venue deleted in
// between surfaces as a Referential error through the foreign key.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*model.Session, *model.LineItem, error) {
	date, err := validateCreateSession(in)
	if err != nil {
		return nil, nil, s.failed(err)
	}

	venue, err := s.venues.GetByID(ctx, in.VenueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.failed(repository.NotFound(msgVenueMissing))
		}
		return nil, nil, s.failed(fmt.Errorf("load venue: %w", err))
	}
	if s.afterPrefetch != nil {
		s.afterPrefetch(ctx, venue)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, s.failed(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	session := &model.Session{
		Date:         date,
		FeeCollected: in.FeeCollected,
		VenueID:      venue.ID,
		Notes:        strings.TrimSpace(in.Notes),
	}
	if err := s.sessions.CreateTx(ctx, tx, session); err != nil {
		return nil, nil, s.failed(translateSessionWrite(err))
	}
	sessionID := session.ID
	rent := &model.LineItem{
		SessionID:   &sessionID,
		Category:    model.CategoryRent,
		Description: model.RentDescriptionPrefix + venue.Owner,
		Amount:      venue.NightlyFee,
	}
	if err := s.lineItems.CreateTx(ctx, tx, rent); err != nil {
		return nil, nil, s.failed(translateSessionWrite(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, s.failed(translateSessionWrite(err))
	}
	committed = true

	s.metrics.SessionCreated()
	s.log.Infof("created session %d on %s at venue %d (rent %s)", session.ID, session.Date, venue.ID, rent.Amount.StringFixed(2))
	publish(ctx, s.events, s.log, queue.TypeSessionCreated, queue.SessionCreated{
		SessionID:      session.ID,
		Date:           session.Date.String(),
		FeeCollected:   session.FeeCollected,
		VenueID:        venue.ID,
		VenueOwner:     venue.Owner,
		RentLineItemID: rent.ID,
		RentAmount:     rent.Amount,
	})
	return session, rent, nil
}

func validateCreateSession(in CreateSessionInput) (model.Date, error) {
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return model.Date{}, repository.Validation("date must be a valid YYYY-MM-DD date")
	}
	if err := validateFee(in.FeeCollected); err != nil {
		return model.Date{}, err
	}
	if in.VenueID <= 0 {
		return model.Date{}, repository.Validation("venue is required")
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		return model.Date{}, repository.Validation(fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	return date, nil
}

func validateFee(fee decimal.Decimal) error {
	if fee.IsNegative() {
		return repository.Validation("fee collected must not be negative")
	}
	if !validMoney(fee) {
		return repository.Validation("fee collected must have at most 2 decimal places")
	}
	return nil
}

// validMoney reports whether d fits a NUMERIC(10,2) column.
func validMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2)) && d.Abs().LessThan(decimal.New(1, 8))
}

// translateSessionWrite turns constraint violations raised while writing a
// session or its line items into domain errors.
func translateSessionWrite(err error) error {
	switch database.Classify(err) {
	case database.UniqueViolation:
		return repository.Conflict(msgDuplicateDate, err)
	case database.ForeignKeyViolation:
		return repository.Referential(msgVenueGone, err)
	case database.CheckViolation, database.NotNullViolation:
		return &repository.Error{Kind: repository.ErrValidation, Message: "session data violates a ledger constraint", Err: err}
	}
	return fmt.Errorf("create session: %w", err)
}

// failed counts a rejected creation by kind and passes err through.
func (s *SessionService) failed(err error) error {
	s.metrics.SessionCreateFailed(errorKind(err))
	return err
}

// errorKind names the repository kind of err for metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return "validation"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	case errors.Is(err, repository.ErrReferential):
		return "referential"
	}
	return "internal"
}

// GetSession returns a session with its line items.
func (s *SessionService) GetSession(ctx context.Context, id int64) (*model.SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.lineItems.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.LineItem{}
	}
	return &model.SessionDetail{Session: *session, LineItems: items}, nil
}

// ListSessions returns sessions matching f, newest first.
func (s *SessionService) ListSessions(ctx context.Context, f repository.SessionFilter) ([]model.Session, error) {
	out, err := s.sessions.List(ctx, f)
	if out == nil && err == nil {
		out = []model.Session{}
	}
	return out, err
}

// UpdateSessionInput carries the fields that may change after creation.
// The date and the venue are fixed.
type UpdateSessionInput struct {
	FeeCollected decimal.Decimal `json:"fee_collected"`
	Notes        string          `json:"notes"`
}

func (s *SessionService) UpdateSession(ctx context.Context, id int64, in UpdateSessionInput) (*model.Session, error) {
	if err := validateFee(in.FeeCollected); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		return nil, repository.Validation(fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	if err := s.sessions.Update(ctx, id, in.FeeCollected, strings.TrimSpace(in.Notes)); err != nil {
		return nil, err
	}
	return s.sessions.GetByID(ctx, id)
}

// DeleteSession removes a session and, by cascade, its line items.
func (s *SessionService) DeleteSession(ctx context.Context, id int64) error {
	return s.sessions.Delete(ctx, id)
}

// AddLineItemInput describes an extra charge on a session.
type AddLineItemInput struct {
	Category    model.Category  `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// AddLineItem attaches a non-rent charge to a session.  Rent rows are only
// written by CreateSession and the backfill, which keeps "exactly one rent
// per session" under their control.
func (s *SessionService) AddLineItem(ctx context.Context, sessionID int64, in AddLineItemInput) (*model.LineItem, error) {
	if !in.Category.Valid() {
		return nil, repository.Validation(fmt.Sprintf("unknown category %q", in.Category))
	}
	if in.Category == model.CategoryRent {
		return nil, repository.Validation("rent line items are created with the session")
	}
	if !in.Amount.IsPositive() || !validMoney(in.Amount) {
		return nil, repository.Validation("amount must be positive with at most 2 decimal places")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, repository.Validation("description is required")
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	li := &model.LineItem{SessionID: &sessionID, Category: in.Category, Description: desc, Amount: in.Amount}
	if err := s.lineItems.Create(ctx, li); err != nil {
		return nil, err
	}
	return li, nil
}

// GetLineItem returns a single line item.
func (s *SessionService) GetLineItem(ctx context.Context, id int64) (*model.LineItem, error) {
	return s.lineItems.GetByID(ctx, id)
}

func (s *SessionService) DeleteLineItem(ctx context.Context, id int64) error {
	return s.lineItems.Delete(ctx, id)
}
