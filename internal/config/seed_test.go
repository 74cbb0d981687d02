package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeSeed(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoadSeedYAML(t *testing.T) {
	path := writeSeed(t, "seed.yaml", `
default_owner: Alpha
backfill_amount: "330.00"
venues:
  - owner: Alpha
    nightly_fee: "330.00"
  - owner: Beta
    nightly_fee: 250
`)
	s, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if s.Plan.DefaultOwner != "Alpha" || len(s.Plan.Seeds) != 2 {
		t.Fatalf("plan = %+v", s.Plan)
	}
	if !s.Plan.Seeds[1].NightlyFee.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("numeric fee decoded as %s", s.Plan.Seeds[1].NightlyFee)
	}
	if !s.BackfillAmount.Equal(decimal.RequireFromString("330")) {
		t.Fatalf("backfill amount = %s", s.BackfillAmount)
	}
}

func TestLoadSeedJSON(t *testing.T) {
	path := writeSeed(t, "seed.json", `{"default_owner":"House","venues":[{"owner":"House","nightly_fee":"99.50"}]}`)
	s, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if !s.BackfillAmount.IsZero() || !s.Plan.Seeds[0].NightlyFee.Equal(decimal.RequireFromString("99.5")) {
		t.Fatalf("seed = %+v", s)
	}
}

func TestLoadSeedErrors(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"default owner not seeded", "a.yaml", "default_owner: Zed\nvenues:\n  - owner: Alpha\n    nightly_fee: '1'\n", "not among the seeds"},
		{"bad fee", "b.yaml", "default_owner: Alpha\nvenues:\n  - owner: Alpha\n    nightly_fee: lots\n", "nightly_fee"},
		{"bad backfill amount", "c.yaml", "default_owner: Alpha\nbackfill_amount: some\nvenues:\n  - owner: Alpha\n    nightly_fee: '1'\n", "backfill_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tc.file, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
