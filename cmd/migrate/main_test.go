package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"precioverdadero/internal/database"
	"precioverdadero/internal/migrations"
	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRun_AppliesOnceAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	cfg := models.DatabaseConfig{Driver: migrations.DialectSQLite, Path: path}
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, false, quietLogger()))
	require.NoError(t, run(ctx, cfg, false, quietLogger()))

	db, _, err := database.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	applied, err := migrations.Applied(ctx, db)
	require.NoError(t, err)
	all, err := migrations.Load(migrations.DialectSQLite)
	require.NoError(t, err)
	assert.Len(t, applied, len(all))
}

func TestRun_MissingFile(t *testing.T) {
	cfg := models.DatabaseConfig{Driver: migrations.DialectSQLite, Path: filepath.Join(t.TempDir(), "nope.db")}
	err := run(context.Background(), cfg, false, quietLogger())
	assert.ErrorContains(t, err, "database file not found")
}

func TestRun_StatusDoesNotApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	cfg := models.DatabaseConfig{Driver: migrations.DialectSQLite, Path: path}
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, true, quietLogger()))

	db, _, err := database.Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	applied, err := migrations.Applied(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
