// Package dbtest opens isolated in-memory SQLite databases carrying the
// payment schema, for repository and end-to-end tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/angelmondragon/aurelia-backend/pkg/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns a fresh database with the orders, transactions and
// outbox_events tables. The pool is pinned to one connection so the
// in-memory database survives for the lifetime of the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range db.SQLiteSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
