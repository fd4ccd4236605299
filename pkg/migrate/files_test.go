package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationWritesValidSkeleton(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 6, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "  Add order Cancel-Reason!! ", at)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if got, want := filepath.Base(path), "20260301090600_add_order_cancel_reason.sql"; got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("fresh skeleton should validate: %v", err)
	}

	if _, err := createSQLMigration(dir, "add order cancel reason", at); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
}

func TestCreateSQLMigrationRejectsUnusableName(t *testing.T) {
	if _, err := createSQLMigration(t.TempDir(), "---", time.Now()); err == nil {
		t.Fatalf("expected error for name without letters or digits")
	}
	if _, err := CreateSQLMigration("", "orders"); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations invalid: %v", err)
	}
}

func TestValidateDirRejectsBrokenFiles(t *testing.T) {
	const good = "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]map[string]string{
		"bad filename": {
			"2026_orders.sql": good,
		},
		"duplicate version": {
			"20260301090000_orders.sql":   good,
			"20260301090000_payments.sql": good,
		},
		"missing down": {
			"20260301090000_orders.sql": "-- +goose Up\nSELECT 1;\n",
		},
		"unterminated block": {
			"20260301090000_orders.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range files {
				if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
					t.Fatalf("write %s: %v", file, err)
				}
			}
			if err := ValidateDir(dir); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
