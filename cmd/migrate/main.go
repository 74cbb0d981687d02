// Command migrate is the operator CLI for schema evolution and data repair.
//
//	migrate baseline                      create the pre-venue schema
//	migrate up -seed seed.yaml            add venues and assign legacy sessions
//	migrate down                          reverse, refused while sessions exist
//	migrate status                        print the schema state as JSON
//	migrate backfill [-amount 330.00]     add missing rent line items
//	migrate token -sub ops -role ADMIN    print an API access token
//
// The database is chosen by DB_DRIVER and DB_DSN (or DB_PATH for SQLite).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/config"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/middleware"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/migration"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/service"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/utils"
)

const usage = "usage: migrate baseline|up|down|status|backfill|token [flags]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, log.New("migrate"))
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	seedPath := fs.String("seed", "", "seed file with venues and the default owner (YAML, JSON or TOML)")
	amount := fs.String("amount", "", "rent amount for backfilled line items; defaults to the seed's backfill_amount")
	batch := fs.Int("batch", service.DefaultBackfillBatch, "sessions per backfill transaction")
	dryRun := fs.Bool("dry-run", false, "report what backfill would write without writing")
	subject := fs.String("sub", "", "token subject")
	role := fs.String("role", middleware.RoleOperator, "token role: ADMIN, OPERATOR or VIEWER")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	config.LoadDotEnv()
	if cmd == "token" {
		tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *subject, *role, *ttl)
		if err != nil {
			logger.Errorf("token: %v", err)
			return 1
		}
		fmt.Fprintln(stdout, tok.Token)
		return 0
	}

	dbc := config.LoadDB()
	db, err := database.Open(dbc.Driver, dbc.DSN)
	if err != nil {
		logger.Errorf("open %s database: %v", dbc.Driver, err)
		return 1
	}
	defer db.Close()

	m := metrics.New(prometheus.NewRegistry())
	mig, err := migration.New(db, dbc.Driver, logger, m)
	if err != nil && cmd != "backfill" {
		logger.Errorf("%s: %v", cmd, err)
		return 1
	}

	wrote := false
	switch cmd {
	case "baseline":
		err = mig.Baseline(ctx)
	case "up":
		var seed config.Seed
		if *seedPath == "" {
			err = errors.New("-seed is required")
			break
		}
		if seed, err = config.LoadSeed(*seedPath); err != nil {
			break
		}
		var res migration.UpResult
		if res, err = mig.Up(ctx, seed.Plan); err == nil {
			wrote = true
			err = printJSON(stdout, res)
		}
	case "down":
		var n int64
		n, err = mig.Down(ctx)
		wrote = err == nil
		if n > 0 {
			logger.Errorf("%d session(s) still reference venues; delete them before reversing", n)
		}
	case "status":
		var st migration.Status
		if st, err = mig.Status(ctx); err == nil {
			err = printJSON(stdout, st)
		}
	case "backfill":
		var amt decimal.Decimal
		if amt, err = backfillAmount(*amount, *seedPath); err != nil {
			break
		}
		deps := service.Deps{DB: db, Dialect: dbc.Driver, Metrics: m, Logger: logger}
		if ev := config.LoadEventsConfig(); ev.Enabled {
			deps.Events = queue.NewPublisher(ev.URL)
		}
		var res service.BackfillResult
		res, err = service.NewBackfillService(deps).Run(ctx, service.BackfillOptions{Amount: amt, BatchSize: *batch, DryRun: *dryRun})
		wrote = res.Created > 0
		if perr := printJSON(stdout, res); err == nil {
			err = perr
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	if wrote {
		if cc := config.LoadCacheConfig(); cc.Enabled {
			if rdb := config.NewRedisClient(); rdb != nil {
				invalidateCache(ctx, cc.Prefix, rdb, logger)
				_ = rdb.Close()
			}
		}
	}

	if err != nil {
		if migration.IsFatal(err) {
			logger.Errorf("%s aborted, nothing was changed: %v", cmd, err)
		} else {
			logger.Errorf("%s: %v", cmd, err)
		}
		return 1
	}
	return 0
}

// invalidateCache bumps the API's read-cache generation so cached GETs do
// not hide what this process wrote.
func invalidateCache(ctx context.Context, prefix string, rdb middleware.GenerationBumper, logger *log.Logger) {
	if err := middleware.BumpGeneration(ctx, prefix, rdb); err != nil {
		logger.Warnf("read cache not invalidated, entries expire on their own: %v", err)
		return
	}
	logger.Infof("read cache invalidated")
}

// backfillAmount prefers the -amount flag and falls back to the seed file.
func backfillAmount(flagValue, seedPath string) (decimal.Decimal, error) {
	if flagValue != "" {
		d, err := decimal.NewFromString(flagValue)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid -amount %q: %w", flagValue, err)
		}
		return d, nil
	}
	if seedPath == "" {
		return decimal.Decimal{}, errors.New("-amount or -seed is required")
	}
	seed, err := config.LoadSeed(seedPath)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if seed.BackfillAmount.IsZero() {
		return decimal.Decimal{}, errors.New("seed file has no backfill_amount")
	}
	return seed.BackfillAmount, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
