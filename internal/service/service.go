// Package service holds the ledger's write paths: creating a session
// together with its rent line item, repairing sessions that lack one, and
// administering venues.  Validation happens here, before any database
// access; constraint violations raised by the database are translated into
// repository error kinds with short, user-presentable messages.
package service

import (
	"context"
	"database/sql"

	"github.com/labstack/gommon/log"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
)

// Logger is the subset of gommon's logger the services write to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// EventPublisher delivers ledger events.  *queue.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Deps bundles what the services share.  Events, Metrics and Logger are
// optional.
type Deps struct {
	DB      *sql.DB
	Dialect database.Dialect
	Events  EventPublisher
	Metrics *metrics.Metrics
	Logger  Logger
}

func (d Deps) logger(prefix string) Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.New(prefix)
}

// publish sends an event after a commit.  Failures are logged only: the
// write already happened and must not be reported as failed.
func publish(ctx context.Context, p EventPublisher, l Logger, typ string, payload any) {
	if p == nil {
		return
	}
	ev, err := queue.NewEvent(typ, payload)
	if err != nil {
		l.Errorf("build %s event: %v", typ, err)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		l.Warnf("publish %s event %s: %v", typ, ev.ID, err)
	}
}
