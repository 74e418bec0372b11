// Package dbtest builds throwaway databases for repository and service
// tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"wave-ticketing/internal/models"
)

// Models lists every table in creation order.
var Models = []interface{}{
	(*models.Event)(nil),
	(*models.Wave)(nil),
	(*models.WaveCategory)(nil),
	(*models.Order)(nil),
	(*models.Ticket)(nil),
}

// NewSQLite returns an in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func NewSQLite(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))
	return db
}

// CreateSchema creates every model table.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range Models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
