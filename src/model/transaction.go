package model

import (
	"database/sql"
	"time"
)

type Transaction struct {
	ID            int64          `json:"id"`
	AccountID     int64          `json:"account_id"`
	UserID        int64          `json:"user_id"`
	CategoryID    sql.NullInt64  `json:"category_id"`
	SubcategoryID sql.NullInt64  `json:"subcategory_id"`
	Date          string         `json:"date"` // YYYY-MM-DD
	Description   string         `json:"description"`
	Amount        float64        `json:"amount"`
	ImportBatchID sql.NullString `json:"import_batch_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ImportBatch struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

const txColumns = `id, account_id, user_id, category_id, subcategory_id, date, description, amount, import_batch_id, created_at, updated_at`

func scanTransaction(scanner interface{ Scan(...any) error }) (*Transaction, error) {
	var t Transaction
	err := scanner.Scan(&t.ID, &t.AccountID, &t.UserID, &t.CategoryID, &t.SubcategoryID,
		&t.Date, &t.Description, &t.Amount, &t.ImportBatchID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// validateCategoryRefs rejects category references from outside the target
// account. A subcategory must belong to the referenced category; a subcategory
// without a category is never valid. Bad references surface as not-found so
// foreign category IDs stay unguessable.
func validateCategoryRefs(db *sql.DB, accountID int64, categoryID, subcategoryID sql.NullInt64) error {
	if !categoryID.Valid {
		if subcategoryID.Valid {
			return ErrNotFound
		}
		return nil
	}
	var catAccountID int64
	err := db.QueryRow(`SELECT account_id FROM categories WHERE id = ?`, categoryID.Int64).Scan(&catAccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if catAccountID != accountID {
		return ErrNotFound
	}
	if !subcategoryID.Valid {
		return nil
	}
	var parentID int64
	err = db.QueryRow(`SELECT category_id FROM subcategories WHERE id = ?`, subcategoryID.Int64).Scan(&parentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if parentID != categoryID.Int64 {
		return ErrNotFound
	}
	return nil
}

func CreateTransaction(db *sql.DB, callerID int64, t *Transaction) error {
	if err := RequireRole(db, t.AccountID, callerID); err != nil {
		return err
	}
	if err := validateCategoryRefs(db, t.AccountID, t.CategoryID, t.SubcategoryID); err != nil {
		return err
	}
	res, err := db.Exec(`
		INSERT INTO transactions (account_id, user_id, category_id, subcategory_id, date, description, amount, import_batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, callerID, t.CategoryID, t.SubcategoryID, t.Date, t.Description, t.Amount, t.ImportBatchID)
	if err != nil {
		return err
	}
	t.UserID = callerID
	t.ID, err = res.LastInsertId()
	return err
}

func ListTransactions(db *sql.DB, accountID, callerID int64, from, to string) ([]Transaction, error) {
	if err := RequireRole(db, accountID, callerID); err != nil {
		return nil, err
	}
	query := `SELECT ` + txColumns + ` FROM transactions WHERE account_id = ?`
	args := []any{accountID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// GetTransactionForUser fails closed across tenants: the row is only visible
// when the caller holds a role on its account.
func GetTransactionForUser(db *sql.DB, txID, callerID int64) (*Transaction, error) {
	return scanTransaction(db.QueryRow(`
		SELECT `+qualifiedTxColumns+`
		FROM transactions t
		JOIN account_users au ON au.account_id = t.account_id
		WHERE t.id = ? AND au.user_id = ?`, txID, callerID))
}

const qualifiedTxColumns = `t.id, t.account_id, t.user_id, t.category_id, t.subcategory_id, t.date, t.description, t.amount, t.import_batch_id, t.created_at, t.updated_at`

func UpdateTransaction(db *sql.DB, callerID int64, t *Transaction) error {
	existing, err := GetTransactionForUser(db, t.ID, callerID)
	if err != nil {
		return err
	}
	if err := validateCategoryRefs(db, existing.AccountID, t.CategoryID, t.SubcategoryID); err != nil {
		return err
	}
	_, err = db.Exec(`
		UPDATE transactions
		SET category_id = ?, subcategory_id = ?, date = ?, description = ?, amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.CategoryID, t.SubcategoryID, t.Date, t.Description, t.Amount, existing.ID)
	return err
}

func DeleteTransaction(db *sql.DB, txID, callerID int64) error {
	existing, err := GetTransactionForUser(db, txID, callerID)
	if err != nil {
		return err
	}
	_, err = db.Exec(`DELETE FROM transactions WHERE id = ?`, existing.ID)
	return err
}

// InsertImportBatch records provenance for a CSV import together with its rows,
// all inside one transaction.
func InsertImportBatch(db *sql.DB, callerID int64, batch *ImportBatch, transactions []Transaction) error {
	if err := RequireRole(db, batch.AccountID, callerID); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO import_batches (id, account_id, user_id, filename, row_count)
		VALUES (?, ?, ?, ?, ?)`,
		batch.ID, batch.AccountID, callerID, batch.Filename, len(transactions)); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO transactions (account_id, user_id, category_id, subcategory_id, date, description, amount, import_batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range transactions {
		if _, err := stmt.Exec(batch.AccountID, callerID, t.CategoryID, t.SubcategoryID,
			t.Date, t.Description, t.Amount, batch.ID); err != nil {
			return err
		}
	}
	batch.RowCount = len(transactions)
	return tx.Commit()
}

// FinancialSummary aggregates transaction flows for prompt context.
type FinancialSummary struct {
	MonthlyIncome       float64 `json:"monthly_income"`
	MonthlySpending     float64 `json:"monthly_spending"`
	SavingsRatePct      float64 `json:"savings_rate_pct"`
	EmergencyFundMonths float64 `json:"emergency_fund_months"`
	TotalBalance        float64 `json:"total_balance"`
	TransactionCount    int     `json:"transaction_count"`
	WindowMonths        int     `json:"window_months"`
}

// SummarizeAccountFinances averages income and spending over the trailing
// window. Income rows are positive amounts, spending negative.
func SummarizeAccountFinances(db *sql.DB, accountID, callerID int64, windowMonths int) (*FinancialSummary, error) {
	if err := RequireRole(db, accountID, callerID); err != nil {
		return nil, err
	}
	if windowMonths <= 0 {
		windowMonths = 3
	}
	since := time.Now().AddDate(0, -windowMonths, 0).Format("2006-01-02")

	var income, spending, balance float64
	var count int
	err := db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN amount > 0 AND date >= ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 AND date >= ? THEN -amount ELSE 0 END), 0),
			COALESCE(SUM(amount), 0),
			COUNT(*)
		FROM transactions WHERE account_id = ?`, since, since, accountID).
		Scan(&income, &spending, &balance, &count)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		MonthlyIncome:    income / float64(windowMonths),
		MonthlySpending:  spending / float64(windowMonths),
		TotalBalance:     balance,
		TransactionCount: count,
		WindowMonths:     windowMonths,
	}
	if summary.MonthlyIncome > 0 {
		summary.SavingsRatePct = (summary.MonthlyIncome - summary.MonthlySpending) / summary.MonthlyIncome * 100
	}
	if summary.MonthlySpending > 0 {
		summary.EmergencyFundMonths = balance / summary.MonthlySpending
	}
	return summary, nil
}
