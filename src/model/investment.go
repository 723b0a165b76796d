package model

import (
	"database/sql"
	"time"
)

type InvestmentProfile struct {
	ID                int64          `json:"id"`
	AccountID         int64          `json:"account_id"`
	RiskProfile       string         `json:"risk_profile"` // conservador | moderado | agresivo
	MonthlyInvestable float64        `json:"monthly_investable"`
	LumpSum           float64        `json:"lump_sum"`
	HorizonYears      int            `json:"horizon_years"`
	AnalysisJSON      sql.NullString `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type ChatSession struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"session_id"`
	AccountID  int64     `json:"account_id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertInvestmentProfile creates the per-account profile on first use and
// overwrites it on subsequent assessments.
func UpsertInvestmentProfile(db *sql.DB, callerID int64, p *InvestmentProfile) error {
	if err := RequireRole(db, p.AccountID, callerID); err != nil {
		return err
	}
	// No sqlite UPSERT here to mirror the cache's delete-then-insert discipline
	// inside a transaction.
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM investment_profiles WHERE account_id = ?`, p.AccountID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		INSERT INTO investment_profiles (account_id, risk_profile, monthly_investable, lump_sum, horizon_years, analysis_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.AccountID, p.RiskProfile, p.MonthlyInvestable, p.LumpSum, p.HorizonYears, p.AnalysisJSON)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	return tx.Commit()
}

func GetInvestmentProfile(db *sql.DB, accountID, callerID int64) (*InvestmentProfile, error) {
	if err := RequireRole(db, accountID, callerID); err != nil {
		return nil, err
	}
	row := db.QueryRow(`
		SELECT id, account_id, risk_profile, monthly_investable, lump_sum, horizon_years, analysis_json, created_at, updated_at
		FROM investment_profiles WHERE account_id = ?`, accountID)

	var p InvestmentProfile
	err := row.Scan(&p.ID, &p.AccountID, &p.RiskProfile, &p.MonthlyInvestable, &p.LumpSum,
		&p.HorizonYears, &p.AnalysisJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetOrCreateChatSession resolves a session by external ID, creating it when
// the ID is empty or unknown to this account.
func GetOrCreateChatSession(db *sql.DB, accountID, userID int64, externalID, newExternalID string) (*ChatSession, error) {
	if err := RequireRole(db, accountID, userID); err != nil {
		return nil, err
	}
	if externalID != "" {
		row := db.QueryRow(`
			SELECT id, external_id, account_id, user_id, COALESCE(title, ''), created_at, updated_at
			FROM ai_chat_sessions WHERE external_id = ? AND account_id = ?`, externalID, accountID)
		var s ChatSession
		err := row.Scan(&s.ID, &s.ExternalID, &s.AccountID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
		if err == nil {
			return &s, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}

	res, err := db.Exec(`
		INSERT INTO ai_chat_sessions (external_id, account_id, user_id) VALUES (?, ?, ?)`,
		newExternalID, accountID, userID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &ChatSession{ID: id, ExternalID: newExternalID, AccountID: accountID, UserID: userID}, nil
}

func AppendChatMessage(db *sql.DB, m *ChatMessage) error {
	res, err := db.Exec(`
		INSERT INTO ai_chat_messages (session_id, role, content, provider) VALUES (?, ?, ?, ?)`,
		m.SessionID, m.Role, m.Content, m.Provider)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`UPDATE ai_chat_sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, m.SessionID); err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

// GetRecentChatMessages returns up to limit messages in chronological order.
func GetRecentChatMessages(db *sql.DB, sessionID int64, limit int) ([]ChatMessage, error) {
	rows, err := db.Query(`
		SELECT id, session_id, role, content, COALESCE(provider, ''), created_at
		FROM (
			SELECT * FROM ai_chat_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Provider, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
