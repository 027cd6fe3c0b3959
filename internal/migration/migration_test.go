package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesSchema(t *testing.T) {
	db := memoryDB(t)
	r := NewRunner()
	require.NoError(t, r.Run(context.Background(), db))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM analysis_runs`))
	assert.Zero(t, count)
	assert.Equal(t, "2", r.Version())
}

func TestRunIsIdempotent(t *testing.T) {
	db := memoryDB(t)
	r := NewRunner()
	require.NoError(t, r.Run(context.Background(), db))
	require.NoError(t, r.Run(context.Background(), db))

	var versions []int
	require.NoError(t, db.Select(&versions, `SELECT version FROM schema_migrations ORDER BY version`))
	assert.Equal(t, []int{1, 2}, versions)
}
