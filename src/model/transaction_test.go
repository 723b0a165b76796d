package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionLifecycle(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	category := &Category{AccountID: account.ID, Name: "Alimentación", Kind: "expense"}
	require.NoError(t, CreateCategory(db, owner.ID, category))

	tx := &Transaction{
		AccountID:   account.ID,
		CategoryID:  sql.NullInt64{Int64: category.ID, Valid: true},
		Date:        "2026-03-01",
		Description: "supermercado",
		Amount:      -84.20,
	}
	require.NoError(t, CreateTransaction(db, owner.ID, tx))
	require.NotZero(t, tx.ID)
	assert.Equal(t, owner.ID, tx.UserID)

	got, err := GetTransactionForUser(db, tx.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "supermercado", got.Description)
	assert.Equal(t, -84.20, got.Amount)

	got.Description = "supermercado grande"
	got.Amount = -90
	require.NoError(t, UpdateTransaction(db, owner.ID, got))
	updated, err := GetTransactionForUser(db, tx.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "supermercado grande", updated.Description)

	require.NoError(t, DeleteTransaction(db, tx.ID, owner.ID))
	_, err = GetTransactionForUser(db, tx.ID, owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactionsDateFilter(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	for _, d := range []string{"2026-01-05", "2026-02-05", "2026-03-05"} {
		tx := &Transaction{AccountID: account.ID, Date: d, Description: "gasto " + d, Amount: -10}
		require.NoError(t, CreateTransaction(db, owner.ID, tx))
	}

	all, err := ListTransactions(db, account.ID, owner.ID, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := ListTransactions(db, account.ID, owner.ID, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "2026-02-05", filtered[0].Date)
}

func TestDeleteCategoryClearsTransactionReferences(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	category := &Category{AccountID: account.ID, Name: "Ocio", Kind: "expense"}
	require.NoError(t, CreateCategory(db, owner.ID, category))
	sub := &Subcategory{CategoryID: category.ID, Name: "Cine"}
	require.NoError(t, CreateSubcategory(db, owner.ID, sub))

	tx := &Transaction{
		AccountID:     account.ID,
		CategoryID:    sql.NullInt64{Int64: category.ID, Valid: true},
		SubcategoryID: sql.NullInt64{Int64: sub.ID, Valid: true},
		Date:          "2026-03-10",
		Description:   "entradas",
		Amount:        -24,
	}
	require.NoError(t, CreateTransaction(db, owner.ID, tx))

	require.NoError(t, DeleteCategory(db, category.ID, owner.ID))

	got, err := GetTransactionForUser(db, tx.ID, owner.ID)
	require.NoError(t, err, "the transaction survives its category")
	assert.False(t, got.CategoryID.Valid)
	assert.False(t, got.SubcategoryID.Valid)
}

func TestInsertImportBatchIsAtomic(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	batch := &ImportBatch{ID: uuid.NewString(), AccountID: account.ID, Filename: "extracto.csv"}
	rows := []Transaction{
		{Date: "2026-01-02", Description: "nómina", Amount: 2100},
		{Date: "2026-01-03", Description: "alquiler", Amount: -850},
	}
	require.NoError(t, InsertImportBatch(db, owner.ID, batch, rows))
	assert.Equal(t, 2, batch.RowCount)

	imported, err := ListTransactions(db, account.ID, owner.ID, "", "")
	require.NoError(t, err)
	require.Len(t, imported, 2)
	for _, tx := range imported {
		assert.Equal(t, batch.ID, tx.ImportBatchID.String)
	}

	// Reusing the batch ID violates the primary key and must import nothing.
	err = InsertImportBatch(db, owner.ID, batch, rows)
	require.Error(t, err)
	after, err := ListTransactions(db, account.ID, owner.ID, "", "")
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestSummarizeAccountFinances(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	recent := time.Now().AddDate(0, -1, 0).Format("2006-01-02")
	for _, tx := range []*Transaction{
		{AccountID: account.ID, Date: recent, Description: "nómina", Amount: 3000},
		{AccountID: account.ID, Date: recent, Description: "alquiler", Amount: -900},
		{AccountID: account.ID, Date: recent, Description: "compra", Amount: -600},
	} {
		require.NoError(t, CreateTransaction(db, owner.ID, tx))
	}

	summary, err := SummarizeAccountFinances(db, account.ID, owner.ID, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1000, summary.MonthlyIncome, 0.01)
	assert.InDelta(t, 500, summary.MonthlySpending, 0.01)
	assert.InDelta(t, 50, summary.SavingsRatePct, 0.01)
	assert.InDelta(t, 1500, summary.TotalBalance, 0.01)
	assert.InDelta(t, 3, summary.EmergencyFundMonths, 0.01)
	assert.Equal(t, 3, summary.TransactionCount)
	assert.Equal(t, 3, summary.WindowMonths)
}

func TestSummarizeRequiresMembership(t *testing.T) {
	db := newTestDB(t)
	_, account := newTestUser(t, db, "ana")
	outsider, _ := newTestUser(t, db, "bruno")

	_, err := SummarizeAccountFinances(db, account.ID, outsider.ID, 3)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateTransactionRejectsForeignCategory(t *testing.T) {
	db := newTestDB(t)
	ana, anaAccount := newTestUser(t, db, "ana")
	bruno, brunoAccount := newTestUser(t, db, "bruno")

	brunoCategory := &Category{AccountID: brunoAccount.ID, Name: "Vivienda", Kind: "expense"}
	require.NoError(t, CreateCategory(db, bruno.ID, brunoCategory))

	tx := &Transaction{
		AccountID:   anaAccount.ID,
		CategoryID:  sql.NullInt64{Int64: brunoCategory.ID, Valid: true},
		Date:        "2026-04-01",
		Description: "alquiler",
		Amount:      -900,
	}
	err := CreateTransaction(db, ana.ID, tx)
	assert.ErrorIs(t, err, ErrNotFound, "a category from another account must not be attachable")

	rows, err := ListTransactions(db, anaAccount.ID, ana.ID, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateTransactionRejectsForeignCategory(t *testing.T) {
	db := newTestDB(t)
	ana, anaAccount := newTestUser(t, db, "ana")
	bruno, brunoAccount := newTestUser(t, db, "bruno")

	brunoCategory := &Category{AccountID: brunoAccount.ID, Name: "Vivienda", Kind: "expense"}
	require.NoError(t, CreateCategory(db, bruno.ID, brunoCategory))

	tx := &Transaction{AccountID: anaAccount.ID, Date: "2026-04-01", Description: "alquiler", Amount: -900}
	require.NoError(t, CreateTransaction(db, ana.ID, tx))

	tx.CategoryID = sql.NullInt64{Int64: brunoCategory.ID, Valid: true}
	assert.ErrorIs(t, UpdateTransaction(db, ana.ID, tx), ErrNotFound)

	got, err := GetTransactionForUser(db, tx.ID, ana.ID)
	require.NoError(t, err)
	assert.False(t, got.CategoryID.Valid, "the rejected update must not stick")
}

func TestCreateTransactionRejectsMismatchedSubcategory(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	food := &Category{AccountID: account.ID, Name: "Alimentación", Kind: "expense"}
	require.NoError(t, CreateCategory(db, owner.ID, food))
	leisure := &Category{AccountID: account.ID, Name: "Ocio", Kind: "expense"}
	require.NoError(t, CreateCategory(db, owner.ID, leisure))
	cinema := &Subcategory{CategoryID: leisure.ID, Name: "Cine"}
	require.NoError(t, CreateSubcategory(db, owner.ID, cinema))

	tx := &Transaction{
		AccountID:     account.ID,
		CategoryID:    sql.NullInt64{Int64: food.ID, Valid: true},
		SubcategoryID: sql.NullInt64{Int64: cinema.ID, Valid: true},
		Date:          "2026-04-02",
		Description:   "cena",
		Amount:        -30,
	}
	assert.ErrorIs(t, CreateTransaction(db, owner.ID, tx), ErrNotFound,
		"a subcategory must belong to the referenced category")

	tx.CategoryID = sql.NullInt64{}
	assert.ErrorIs(t, CreateTransaction(db, owner.ID, tx), ErrNotFound,
		"a subcategory without a category is never valid")

	tx.SubcategoryID = sql.NullInt64{}
	assert.NoError(t, CreateTransaction(db, owner.ID, tx))
}
