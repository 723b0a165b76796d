package model

import (
	"database/sql"
	"time"
)

type Category struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type Subcategory struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

func CreateCategory(db *sql.DB, callerID int64, c *Category) error {
	if err := RequireRole(db, c.AccountID, callerID); err != nil {
		return err
	}
	res, err := db.Exec(`INSERT INTO categories (account_id, name, kind) VALUES (?, ?, ?)`,
		c.AccountID, c.Name, c.Kind)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func ListCategories(db *sql.DB, accountID, callerID int64) ([]Category, error) {
	if err := RequireRole(db, accountID, callerID); err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT id, account_id, name, kind, created_at FROM categories
		WHERE account_id = ? ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryForUser returns the category only when the caller has a role on
// its account; cross-tenant reads surface as not-found.
func GetCategoryForUser(db *sql.DB, categoryID, callerID int64) (*Category, error) {
	row := db.QueryRow(`
		SELECT c.id, c.account_id, c.name, c.kind, c.created_at
		FROM categories c
		JOIN account_users au ON au.account_id = c.account_id
		WHERE c.id = ? AND au.user_id = ?`, categoryID, callerID)

	var c Category
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Kind, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func UpdateCategory(db *sql.DB, categoryID, callerID int64, name, kind string) error {
	c, err := GetCategoryForUser(db, categoryID, callerID)
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE categories SET name = ?, kind = ? WHERE id = ?`, name, kind, c.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func DeleteCategory(db *sql.DB, categoryID, callerID int64) error {
	c, err := GetCategoryForUser(db, categoryID, callerID)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE transactions SET category_id = NULL, subcategory_id = NULL WHERE category_id = ?`, c.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM subcategories WHERE category_id = ?`, c.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM categories WHERE id = ?`, c.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func CreateSubcategory(db *sql.DB, callerID int64, s *Subcategory) error {
	if _, err := GetCategoryForUser(db, s.CategoryID, callerID); err != nil {
		return err
	}
	res, err := db.Exec(`INSERT INTO subcategories (category_id, name) VALUES (?, ?)`,
		s.CategoryID, s.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func ListSubcategories(db *sql.DB, categoryID, callerID int64) ([]Subcategory, error) {
	if _, err := GetCategoryForUser(db, categoryID, callerID); err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT id, category_id, name, created_at FROM subcategories
		WHERE category_id = ? ORDER BY name`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subcategories := []Subcategory{}
	for rows.Next() {
		var s Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		subcategories = append(subcategories, s)
	}
	return subcategories, rows.Err()
}

func DeleteSubcategory(db *sql.DB, subcategoryID, callerID int64) error {
	row := db.QueryRow(`
		SELECT s.id FROM subcategories s
		JOIN categories c ON c.id = s.category_id
		JOIN account_users au ON au.account_id = c.account_id
		WHERE s.id = ? AND au.user_id = ?`, subcategoryID, callerID)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE transactions SET subcategory_id = NULL WHERE subcategory_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM subcategories WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
