// Package dbtest opens isolated in-memory SQLite databases with the full
// schema for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
)

// NewSQLite returns a migrated connection private to the calling test.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// NewClient wraps NewSQLite in a db.Client.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(NewSQLite(t))
}
