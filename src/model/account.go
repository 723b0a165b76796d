package model

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"` // the caller's role, filled by list queries
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AccountMember struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// GetAccountRole resolves the caller's role on an account. Absence of a role
// row fails closed with ErrForbidden, never an empty result.
func GetAccountRole(db *sql.DB, accountID, userID int64) (string, error) {
	var role string
	err := db.QueryRow(`SELECT role FROM account_users WHERE account_id = ? AND user_id = ?`,
		accountID, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrForbidden
		}
		return "", err
	}
	return role, nil
}

// RequireRole verifies the caller holds any role on the account.
func RequireRole(db *sql.DB, accountID, userID int64) error {
	_, err := GetAccountRole(db, accountID, userID)
	return err
}

// RequireOwner verifies the caller holds the owner role on the account.
func RequireOwner(db *sql.DB, accountID, userID int64) error {
	role, err := GetAccountRole(db, accountID, userID)
	if err != nil {
		return err
	}
	if role != RoleOwner {
		return ErrNotOwner
	}
	return nil
}

// CreateAccountWithOwner inserts the account and the creator's owner row in one
// transaction: exactly the creating user is owner at creation.
func CreateAccountWithOwner(db *sql.DB, name string, ownerID int64) (*Account, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin account creation transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO accounts (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	accountID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO account_users (account_id, user_id, role) VALUES (?, ?, 'owner')`,
		accountID, ownerID); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Account{ID: accountID, Name: name, Role: RoleOwner}, nil
}

func ListAccountsForUser(db *sql.DB, userID int64) ([]Account, error) {
	rows, err := db.Query(`
		SELECT a.id, a.name, au.role, a.created_at, a.updated_at
		FROM accounts a
		JOIN account_users au ON au.account_id = a.id
		WHERE au.user_id = ?
		ORDER BY a.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccountForUser returns the account only when the user holds a role on it.
// Cross-tenant reads surface as not-found to avoid existence leaks.
func GetAccountForUser(db *sql.DB, accountID, userID int64) (*Account, error) {
	row := db.QueryRow(`
		SELECT a.id, a.name, au.role, a.created_at, a.updated_at
		FROM accounts a
		JOIN account_users au ON au.account_id = a.id
		WHERE a.id = ? AND au.user_id = ?`, accountID, userID)

	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// RenameAccount requires the owner role.
func RenameAccount(db *sql.DB, accountID, callerID int64, name string) error {
	if err := RequireOwner(db, accountID, callerID); err != nil {
		return err
	}
	_, err := db.Exec(`UPDATE accounts SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, accountID)
	return err
}

// DeleteAccount removes the account and all dependent rows. Owner only.
func DeleteAccount(db *sql.DB, accountID, callerID int64) error {
	if err := RequireOwner(db, accountID, callerID); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin account deletion transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM ai_chat_messages WHERE session_id IN (SELECT id FROM ai_chat_sessions WHERE account_id = ?)`,
		`DELETE FROM ai_chat_sessions WHERE account_id = ?`,
		`DELETE FROM investment_profiles WHERE account_id = ?`,
		`DELETE FROM transactions WHERE account_id = ?`,
		`DELETE FROM import_batches WHERE account_id = ?`,
		`DELETE FROM subcategories WHERE category_id IN (SELECT id FROM categories WHERE account_id = ?)`,
		`DELETE FROM categories WHERE account_id = ?`,
		`DELETE FROM account_users WHERE account_id = ?`,
		`DELETE FROM accounts WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt, accountID); err != nil {
			return fmt.Errorf("delete account data: %w", err)
		}
	}
	return tx.Commit()
}

// AddMember grants a user the member role. Owner only.
func AddMember(db *sql.DB, accountID, callerID, newUserID int64) error {
	if err := RequireOwner(db, accountID, callerID); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO account_users (account_id, user_id, role) VALUES (?, ?, 'member')`,
		accountID, newUserID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// RemoveMember revokes a membership. Owner only; the owner row itself cannot be removed.
func RemoveMember(db *sql.DB, accountID, callerID, memberID int64) error {
	if err := RequireOwner(db, accountID, callerID); err != nil {
		return err
	}
	res, err := db.Exec(`DELETE FROM account_users WHERE account_id = ? AND user_id = ? AND role != 'owner'`,
		accountID, memberID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func ListMembers(db *sql.DB, accountID, callerID int64) ([]AccountMember, error) {
	if err := RequireRole(db, accountID, callerID); err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT u.id, u.username, u.email, au.role
		FROM account_users au
		JOIN users u ON u.id = au.user_id
		WHERE au.account_id = ?
		ORDER BY au.role DESC, u.id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []AccountMember{}
	for rows.Next() {
		var m AccountMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.Email, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
