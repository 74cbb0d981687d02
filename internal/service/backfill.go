package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
)

// DefaultBackfillBatch is the number of inserts committed per transaction.
const DefaultBackfillBatch = 100

// BackfillService adds the missing rent line item to sessions that predate
// the rule that every session carries one.
type BackfillService struct {
	db        *sql.DB
	sessions  *repository.SessionRepo
	lineItems *repository.LineItemRepo
	events    EventPublisher
	metrics   *metrics.Metrics
	log       Logger
}

func NewBackfillService(d Deps) *BackfillService {
	return &BackfillService{
		db:        d.DB,
		sessions:  repository.NewSessionRepo(d.DB, d.Dialect),
		lineItems: repository.NewLineItemRepo(d.DB, d.Dialect),
		events:    d.Events,
		metrics:   d.Metrics,
		log:       d.logger("backfill"),
	}
}

type BackfillOptions struct {
	// Amount is charged on every backfilled rent line item.
	Amount    decimal.Decimal
	BatchSize int
	// DryRun reports what would be written without writing.
	DryRun bool
}

type BackfillResult struct {
	Missing       int   `json:"missing"`
	Created       int   `json:"created"`
	Sessions      int64 `json:"sessions"`
	RentLineItems int64 `json:"rent_line_items"`
	Verified      bool  `json:"verified"`
	DryRun        bool  `json:"dry_run"`
}

// Run backfills rent line items.  The missing set is recomputed on every
// call and each insert re-checks for an existing rent row, so running it
// again after a full or interrupted run never creates duplicates.  Batches
// commit independently.  A count mismatch afterwards is logged as a warning
// and reported through Verified; it is not an error.
func (b *BackfillService) Run(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	res := BackfillResult{DryRun: opts.DryRun}
	if !opts.Amount.IsPositive() || !validMoney(opts.Amount) {
		return res, repository.Validation("backfill amount must be positive with at most 2 decimal places")
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBackfillBatch
	}

	missing, err := b.lineItems.SessionsMissingRent(ctx)
	if err != nil {
		return res, fmt.Errorf("find sessions without rent: %w", err)
	}
	res.Missing = len(missing)
	b.log.Infof("%d session(s) without a rent line item", res.Missing)

	if !opts.DryRun {
		for start := 0; start < len(missing); start += batch {
			end := min(start+batch, len(missing))
			n, err := b.insertBatch(ctx, missing[start:end], opts.Amount)
			res.Created += n
			b.metrics.BackfillCreated(n)
			if err != nil {
				return res, fmt.Errorf("backfill batch %d-%d: %w", start, end, err)
			}
			b.log.Infof("batch %d-%d committed, %d created", start, end, n)
		}
	}

	if err := b.verify(ctx, &res); err != nil {
		return res, err
	}
	publish(ctx, b.events, b.log, queue.TypeBackfillCompleted, queue.BackfillCompleted{
		Created:       res.Created,
		Amount:        opts.Amount,
		Sessions:      res.Sessions,
		RentLineItems: res.RentLineItems,
		Verified:      res.Verified,
		DryRun:        res.DryRun,
	})
	return res, nil
}

func (b *BackfillService) insertBatch(ctx context.Context, ids []int64, amount decimal.Decimal) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	created := 0
	for _, id := range ids {
		ok, err := b.lineItems.InsertRentIfMissingTx(ctx, tx, id, amount, model.BackfilledRentDescription)
		if err != nil {
			return 0, err
		}
		if ok {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return created, nil
}

func (b *BackfillService) verify(ctx context.Context, res *BackfillResult) error {
	var err error
	if res.Sessions, err = b.sessions.Count(ctx); err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	if res.RentLineItems, err = b.lineItems.CountRent(ctx); err != nil {
		return fmt.Errorf("count rent line items: %w", err)
	}
	res.Verified = res.Sessions == res.RentLineItems
	if !res.Verified && !res.DryRun {
		b.metrics.BackfillDiverged()
		b.log.Warnf("verification diverged: %d session(s) but %d rent line item(s)", res.Sessions, res.RentLineItems)
	}
	return nil
}
