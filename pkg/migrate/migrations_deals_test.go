package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOffersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_offers_transactions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no offers migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS offers",
		"CREATE TABLE IF NOT EXISTS transactions",
		"CREATE TABLE IF NOT EXISTS deal_payments",
		"amount NUMERIC(14,2) NOT NULL CHECK (amount > 0)",
		"REFERENCES offers(id)",
		"DROP TABLE IF EXISTS deal_payments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationEnforcesEventUniqueness(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_notifications_outbox.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no notifications/outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "ux_outbox_events_event_aggregate") {
		t.Errorf("outbox events should carry the event/aggregate unique index")
	}
	if !strings.Contains(content, "WHERE published_at IS NULL") {
		t.Errorf("expected partial index over unpublished events")
	}
}
