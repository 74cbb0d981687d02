package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
)

const maxOwnerLength = 100

// VenueService administers venues.
type VenueService struct {
	venues *repository.VenueRepo
	log    Logger
}

func NewVenueService(d Deps) *VenueService {
	return &VenueService{
		venues: repository.NewVenueRepo(d.DB, d.Dialect),
		log:    d.logger("venue"),
	}
}

type VenueInput struct {
	Owner      string          `json:"owner"`
	NightlyFee decimal.Decimal `json:"nightly_fee"`
}

func (s *VenueService) Create(ctx context.Context, in VenueInput) (*model.Venue, error) {
	owner, err := validateOwner(in.Owner)
	if err != nil {
		return nil, err
	}
	if err := validateNightlyFee(in.NightlyFee); err != nil {
		return nil, err
	}
	v := &model.Venue{Owner: owner, NightlyFee: in.NightlyFee}
	if err := s.venues.Create(ctx, v); err != nil {
		return nil, err
	}
	s.log.Infof("created venue %d (%s)", v.ID, v.Owner)
	return v, nil
}

// Update changes the owner, the nightly fee or both.  Both fields are
// validated before the database is touched and are written together, so a
// rejected request changes nothing.  Rent line items already written keep
// their amount.
func (s *VenueService) Update(ctx context.Context, id int64, owner *string, fee *decimal.Decimal) (*model.Venue, error) {
	if owner == nil && fee == nil {
		return nil, repository.Validation("nothing to update")
	}
	var c repository.VenueChanges
	if owner != nil {
		trimmed, err := validateOwner(*owner)
		if err != nil {
			return nil, err
		}
		c.Owner = &trimmed
	}
	if fee != nil {
		if err := validateNightlyFee(*fee); err != nil {
			return nil, err
		}
		c.NightlyFee = fee
	}
	v, err := s.venues.Update(ctx, id, c)
	if err != nil {
		return nil, err
	}
	s.log.Infof("updated venue %d (%s, fee %s)", v.ID, v.Owner, v.NightlyFee.StringFixed(2))
	return v, nil
}

// UpdateFee changes the nightly fee charged on future sessions.
func (s *VenueService) UpdateFee(ctx context.Context, id int64, fee decimal.Decimal) (*model.Venue, error) {
	return s.Update(ctx, id, nil, &fee)
}

func (s *VenueService) Rename(ctx context.Context, id int64, owner string) (*model.Venue, error) {
	return s.Update(ctx, id, &owner, nil)
}

// Delete removes a venue no session references.
func (s *VenueService) Delete(ctx context.Context, id int64) error {
	if err := s.venues.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Infof("deleted venue %d", id)
	return nil
}

func (s *VenueService) Get(ctx context.Context, id int64) (*model.Venue, error) {
	return s.venues.GetByID(ctx, id)
}

func (s *VenueService) List(ctx context.Context) ([]model.Venue, error) {
	out, err := s.venues.List(ctx)
	if out == nil && err == nil {
		out = []model.Venue{}
	}
	return out, err
}

func validateOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", repository.Validation("owner is required")
	}
	if utf8.RuneCountInString(owner) > maxOwnerLength {
		return "", repository.Validation(fmt.Sprintf("owner must be at most %d characters", maxOwnerLength))
	}
	return owner, nil
}

func validateNightlyFee(fee decimal.Decimal) error {
	if !model.ValidNightlyFee(fee) || !validMoney(fee) {
		return repository.Validation(fmt.Sprintf("nightly fee must be greater than 0 and at most %s with at most 2 decimal places", model.MaxNightlyFee.String()))
	}
	return nil
}
