package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category tags a line item.  CategoryRent is reserved: it is only written
// when a session is created or by the rent backfill.
type Category string

const (
	CategoryRent     Category = "rent"
	CategoryFood     Category = "food"
	CategorySupplies Category = "supplies"
	CategoryStaff    Category = "staff"
	CategoryOther    Category = "other"
)

// Categories lists every accepted category in the order used by the
// line_items_category_check constraint.
var Categories = []Category{CategoryRent, CategoryFood, CategorySupplies, CategoryStaff, CategoryOther}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Description prefixes used for rent line items.  Backfilled rows carry a
// distinct marker so operators can tell them apart from rent charged at
// creation time.
const (
	RentDescriptionPrefix     = "Rent: "
	BackfilledRentDescription = "Rent (backfilled)"
)

// LineItem is a charge belonging to a session.  SessionID is nil only for
// legacy records that were never attached to a session.
//
// Fields:
//
//	ID          – primary key identifier.
//	SessionID   – owning session (nullable for legacy rows).
//	Category    – one of Categories.
//	Description – free text; rent rows name the venue owner.
//	Amount      – charged amount, fixed when the row is written.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type LineItem struct {
	ID          int64           `json:"id"`          // line_items.id
	SessionID   *int64          `json:"session_id"`  // line_items.session_id (nullable)
	Category    Category        `json:"category"`    // line_items.category
	Description string          `json:"description"` // line_items.description
	Amount      decimal.Decimal `json:"amount"`      // line_items.amount
	CreatedAt   time.Time       `json:"created_at"`  // line_items.created_at
	UpdatedAt   time.Time       `json:"updated_at"`  // line_items.updated_at
}
