package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxNightlyFee is the upper bound accepted for a venue's nightly fee.  The
// same bound is enforced by the venues_nightly_fee_check constraint.
var MaxNightlyFee = decimal.NewFromInt(10000)

// Venue is a named fee configuration.  Every session references exactly one
// venue and its rent line item is priced from the venue's nightly fee at the
// moment the session is created.
//
// Fields:
//
//	ID         – primary key identifier.
//	Owner      – unique display name of the venue owner.
//	NightlyFee – rent charged per session, > 0 and <= MaxNightlyFee.
//	CreatedAt  – creation timestamp.
type Venue struct {
	ID         int64           `json:"id"`          // venues.id
	Owner      string          `json:"owner"`       // venues.owner
	NightlyFee decimal.Decimal `json:"nightly_fee"` // venues.nightly_fee
	CreatedAt  time.Time       `json:"created_at"`  // venues.created_at
}

// ValidNightlyFee reports whether fee lies within (0, MaxNightlyFee].
func ValidNightlyFee(fee decimal.Decimal) bool {
	return fee.IsPositive() && fee.LessThanOrEqual(MaxNightlyFee)
}
