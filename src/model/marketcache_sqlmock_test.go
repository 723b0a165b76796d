package model

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Driver-level failure paths, exercised against a mocked connection so the
// error does not have to be provoked through a real database.

func TestGetMarketCachePropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	driverErr := errors.New("database is locked")
	mock.ExpectQuery("SELECT (.+) FROM market_data_cache").
		WithArgs("aggregate", "multiple", sqlmock.AnyArg()).
		WillReturnError(driverErr)

	_, err = GetMarketCache(db, "aggregate", "multiple")
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrNotFound, "driver errors must not read as a cache miss")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutMarketCacheRollsBackWhenInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM market_data_cache").
		WithArgs("aggregate", "multiple").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO market_data_cache").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = PutMarketCache(db, "aggregate", "multiple", `{"x":1}`, 5*time.Minute)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "failed insert must roll back, never commit")
}

func TestPutMarketCacheDeletesBeforeInserting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM market_data_cache").
		WithArgs("aggregate", "multiple").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO market_data_cache").
		WithArgs("aggregate", "multiple", `{"x":1}`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"x":1}`, 5*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}
