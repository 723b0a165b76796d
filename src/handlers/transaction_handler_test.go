package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/bpstack/home-account-showcase-sub001/src/database"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
)

func newHandlerTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

func newHandlerTestUser(t *testing.T, db *sql.DB, name string) (*model.User, *model.Account) {
	t.Helper()
	user := &model.User{
		Username:        name,
		Email:           name + "@example.com",
		Password:        "hashed",
		AuthProvider:    "local",
		IsEmailVerified: true,
	}
	account, err := model.CreateUserWithDefaultAccount(db, user, name)
	require.NoError(t, err)
	return user, account
}

// authedRequest builds a request as AuthMiddleware would deliver it, with the
// user in context and path values bound.
func authedRequest(method, target string, body string, userID int64, pathValues map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), userIDContextKey, userID))
	for name, value := range pathValues {
		req.SetPathValue(name, value)
	}
	return req
}

// recordingInvalidator captures summary invalidations instead of touching a
// real cache.
type recordingInvalidator struct {
	accountIDs []int64
}

func (r *recordingInvalidator) InvalidateSummary(accountID int64) {
	r.accountIDs = append(r.accountIDs, accountID)
}

func TestUpdateTransactionInvalidatesSummary(t *testing.T) {
	db := newHandlerTestDB(t)
	owner, account := newHandlerTestUser(t, db, "ana")

	tx := &model.Transaction{AccountID: account.ID, Date: "2026-05-01", Description: "nomina", Amount: 2100}
	require.NoError(t, model.CreateTransaction(db, owner.ID, tx))

	invalidations := &recordingInvalidator{}
	handler := NewTransactionHandler(db, nil, invalidations)

	req := authedRequest(http.MethodPut, "/api/transactions/"+strconv.FormatInt(tx.ID, 10),
		`{"date":"2026-05-01","description":"nomina mayo","amount":2200}`,
		owner.ID, map[string]string{"id": strconv.FormatInt(tx.ID, 10)})
	rec := httptest.NewRecorder()
	handler.HandleUpdateTransaction(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{account.ID}, invalidations.accountIDs,
		"an amount change must drop the cached summary")
}

func TestDeleteTransactionInvalidatesSummary(t *testing.T) {
	db := newHandlerTestDB(t)
	owner, account := newHandlerTestUser(t, db, "ana")

	tx := &model.Transaction{AccountID: account.ID, Date: "2026-05-02", Description: "gasto", Amount: -50}
	require.NoError(t, model.CreateTransaction(db, owner.ID, tx))

	invalidations := &recordingInvalidator{}
	handler := NewTransactionHandler(db, nil, invalidations)

	req := authedRequest(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(tx.ID, 10),
		"", owner.ID, map[string]string{"id": strconv.FormatInt(tx.ID, 10)})
	rec := httptest.NewRecorder()
	handler.HandleDeleteTransaction(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{account.ID}, invalidations.accountIDs)
}

func TestDeleteTransactionCrossTenantDoesNotInvalidate(t *testing.T) {
	db := newHandlerTestDB(t)
	ana, anaAccount := newHandlerTestUser(t, db, "ana")
	bruno, _ := newHandlerTestUser(t, db, "bruno")

	tx := &model.Transaction{AccountID: anaAccount.ID, Date: "2026-05-03", Description: "gasto", Amount: -10}
	require.NoError(t, model.CreateTransaction(db, ana.ID, tx))

	invalidations := &recordingInvalidator{}
	handler := NewTransactionHandler(db, nil, invalidations)

	req := authedRequest(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(tx.ID, 10),
		"", bruno.ID, map[string]string{"id": strconv.FormatInt(tx.ID, 10)})
	rec := httptest.NewRecorder()
	handler.HandleDeleteTransaction(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, invalidations.accountIDs)

	_, err := model.GetTransactionForUser(db, tx.ID, ana.ID)
	assert.NoError(t, err, "the row must survive a cross-tenant delete attempt")
}
