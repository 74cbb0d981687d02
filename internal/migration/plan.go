package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SeedVenue is a venue inserted by the forward migration.
type SeedVenue struct {
	Owner      string
	NightlyFee decimal.Decimal
}

// Plan carries the data the forward migration needs.  DefaultOwner names
// the seed venue that existing sessions are assigned to and must be one of
// Seeds.  Fee bounds are left to the venues CHECK constraint so that a bad
// seed fails inside the run like any other step.
type Plan struct {
	Seeds        []SeedVenue
	DefaultOwner string
}

func (p Plan) Validate() error {
	if len(p.Seeds) == 0 {
		return errors.New("plan: at least one seed venue is required")
	}
	seen := make(map[string]bool, len(p.Seeds))
	for i, s := range p.Seeds {
		owner := strings.TrimSpace(s.Owner)
		if owner == "" {
			return fmt.Errorf("plan: seed %d has an empty owner", i)
		}
		if seen[owner] {
			return fmt.Errorf("plan: duplicate seed owner %q", owner)
		}
		seen[owner] = true
	}
	if !seen[strings.TrimSpace(p.DefaultOwner)] {
		return fmt.Errorf("plan: default owner %q is not among the seeds", p.DefaultOwner)
	}
	return nil
}
