package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestUsageMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_usage_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS usage_events",
		"CREATE INDEX IF NOT EXISTS idx_usage_events_account_time ON usage_events (account_id, occurred_at)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_product_views_pair ON product_views (account_id, product_id)",
		"CHECK (total_calls = successful_calls + failed_calls)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_daily_rollups_account_day ON daily_usage_rollups (account_id, day)",
		"DROP TABLE IF EXISTS usage_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCheckoutMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_checkout_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_sessions",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_sessions_stripe_id ON payment_sessions (stripe_session_id)",
		"CHECK (status IN ('pending', 'completed', 'expired', 'failed'))",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_session_id ON purchases (session_id)",
		"FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS purchases",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAccessTokenMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_access_tokens.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_access_tokens_token ON access_tokens (token)",
		"FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS access_tokens",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
