package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/migration"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/testutil"
)

const seedYAML = `
default_owner: House
backfill_amount: "330.00"
venues:
  - owner: House
    nightly_fee: "330.00"
`

func setup(t *testing.T) (dbPath, seedPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "ledger.db")
	seedPath = filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(seedPath, []byte(seedYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("CACHE_ENABLED", "false")
	t.Chdir(dir)
	return dbPath, seedPath
}

func invoke(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), args, &out, testutil.QuietLogger())
	return code, out.String()
}

func TestMigrateLifecycle(t *testing.T) {
	dbPath, seedPath := setup(t)

	if code, _ := invoke(t, "baseline"); code != 0 {
		t.Fatalf("baseline exit %d", code)
	}
	db, err := database.Open(database.SQLite, database.SQLiteDSN(dbPath))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	testutil.Exec(t, db, `INSERT INTO sessions (date, fee_collected) VALUES ('2024-01-05', 0), ('2024-01-12', 15)`)

	if code, _ := invoke(t, "up"); code != 1 {
		t.Fatalf("up without -seed exit %d, want 1", code)
	}
	code, out := invoke(t, "up", "-seed", seedPath)
	if code != 0 {
		t.Fatalf("up exit %d", code)
	}
	var res migration.UpResult
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.SessionsAssigned != 2 {
		t.Fatalf("up output %q (%v)", out, err)
	}

	code, out = invoke(t, "backfill", "-seed", seedPath, "-dry-run")
	if code != 0 || !strings.Contains(out, `"missing": 2`) {
		t.Fatalf("dry run exit %d: %s", code, out)
	}
	if code, out = invoke(t, "backfill", "-amount", "330.00", "-batch", "1"); code != 0 || !strings.Contains(out, `"created": 2`) {
		t.Fatalf("backfill exit %d: %s", code, out)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items WHERE category = 'rent'`); n != 2 {
		t.Fatalf("rent rows = %d, want 2", n)
	}

	if code, _ := invoke(t, "down"); code != 1 {
		t.Fatalf("down with sessions exit %d, want 1", code)
	}
	code, out = invoke(t, "status")
	if code != 0 || !strings.Contains(out, `"VenueColumn": true`) {
		t.Fatalf("status after refused down: %d %s", code, out)
	}
}

func TestMigrateUsageErrors(t *testing.T) {
	setup(t)
	if code, _ := invoke(t); code != 2 {
		t.Fatalf("no args exit %d", code)
	}
	if code, _ := invoke(t, "sideways"); code != 2 {
		t.Fatalf("unknown command exit %d", code)
	}
	if code, _ := invoke(t, "backfill"); code != 1 {
		t.Fatalf("backfill without amount exit %d", code)
	}
}

func TestTokenCommand(t *testing.T) {
	setup(t)
	t.Setenv("JWT_SECRET", "cli-secret")
	code, out := invoke(t, "token", "-sub", "ops@bunker", "-role", "ADMIN")
	if code != 0 || strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Fatalf("token exit %d: %q", code, out)
	}
}

type fakeRedis struct {
	keys []string
	err  error
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.keys = append(f.keys, key)
	return redis.NewIntResult(int64(len(f.keys)), f.err)
}

func TestInvalidateCacheBumpsGeneration(t *testing.T) {
	rdb := &fakeRedis{}
	invalidateCache(context.Background(), "bunker", rdb, testutil.QuietLogger())
	if len(rdb.keys) != 1 || rdb.keys[0] != "bunker:gen" {
		t.Fatalf("incremented keys = %v", rdb.keys)
	}

	down := &fakeRedis{err: errors.New("connection refused")}
	invalidateCache(context.Background(), "bunker", down, testutil.QuietLogger())
	if len(down.keys) != 1 {
		t.Fatalf("incremented keys = %v", down.keys)
	}
}
