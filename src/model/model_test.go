package model

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/bpstack/home-account-showcase-sub001/src/database"
)

// newTestDB opens an isolated in-memory database with the full schema.
// MaxOpenConns is pinned to 1 so every query sees the same memory database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.EnsureSchema(db))
	return db
}

// newTestUser registers a user with their default account, mirroring the
// registration flow.
func newTestUser(t *testing.T, db *sql.DB, name string) (*User, *Account) {
	t.Helper()
	user := &User{
		Username:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		Password:     "hashed-password",
		AuthProvider: "local",
	}
	account, err := CreateUserWithDefaultAccount(db, user, name)
	require.NoError(t, err)
	return user, account
}
