package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
env: " dev "
log:
  level: "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":8440" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.DatabasePath != "lendingd.db" {
		t.Fatalf("unexpected db path: %q", cfg.DatabasePath)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("unexpected env: %q", cfg.Environment)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Log.Level)
	}
}

func TestLoadConfigNormalizesBanksAndQuotes(t *testing.T) {
	path := writeConfig(t, `
listen: " :9000 "
banks:
  - mint: " usdc-mint "
    symbol: " usdc "
    max_ltv_bps: 7500
    liquidation_threshold_bps: 8000
oracle:
  max_age_seconds: 60
  quotes:
    - symbol: " usdc "
      feed_id: " feed-usdc "
      price: 1
      exponent: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if len(cfg.Banks) != 1 || cfg.Banks[0].MintAddress != "usdc-mint" || cfg.Banks[0].Symbol != "USDC" {
		t.Fatalf("unexpected banks: %+v", cfg.Banks)
	}
	if len(cfg.Oracle.Quotes) != 1 || cfg.Oracle.Quotes[0].Symbol != "USDC" || cfg.Oracle.Quotes[0].FeedID != "feed-usdc" {
		t.Fatalf("unexpected quotes: %+v", cfg.Oracle.Quotes)
	}
}

func TestLoadConfigRejectsDuplicateMint(t *testing.T) {
	path := writeConfig(t, `
banks:
  - mint: "usdc-mint"
    symbol: "USDC"
  - mint: "usdc-mint"
    symbol: "USDX"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate mint error")
	}
}

func TestLoadConfigRejectsBadQuote(t *testing.T) {
	cases := []string{
		`
oracle:
  quotes:
    - symbol: "SOL"
      feed_id: "feed"
      price: 0
`,
		`
oracle:
  quotes:
    - symbol: "SOL"
      feed_id: "feed"
      price: 100
      exponent: 2
`,
		`
oracle:
  quotes:
    - symbol: "SOL"
      price: 100
`,
	}
	for i, contents := range cases {
		if _, err := Load(writeConfig(t, contents)); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
