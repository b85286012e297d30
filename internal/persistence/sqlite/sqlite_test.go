// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "categories.db")

	db, err := Open(ctx, path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE categories (id INTEGER PRIMARY KEY, title VARCHAR)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(ctx, path, false)
	require.NoError(t, err)
	assert.Nil(t, issues)

	issues, err = VerifyIntegrity(ctx, path, true)
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadOnly = true
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"), cfg)
	assert.Error(t, err)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", DefaultConfig())
	assert.Error(t, err)
}

func TestVerifyIntegrityDetectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database file at all, just text padding"), 0o600))

	issues, err := VerifyIntegrity(context.Background(), path, false)
	if err == nil {
		assert.NotEmpty(t, issues)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".epgsnoop", "categories.db"), ExpandPath("~/.epgsnoop/categories.db"))
	assert.Equal(t, "/var/lib/epgsnoop.db", ExpandPath("/var/lib/epgsnoop.db"))
}
