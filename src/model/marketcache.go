package model

import (
	"database/sql"
	"time"
)

// MarketCacheEntry is one logical row per (symbol, source) key. Writes are
// delete-then-insert; a read only returns entries that have not expired.
type MarketCacheEntry struct {
	ID        int64
	Symbol    string
	Source    string
	DataJSON  string
	CachedAt  time.Time
	ExpiresAt time.Time
}

// GetMarketCache returns the unexpired entry for the key, or ErrNotFound.
func GetMarketCache(db *sql.DB, symbol, source string) (*MarketCacheEntry, error) {
	row := db.QueryRow(`
		SELECT id, symbol, source, data_json, cached_at, expires_at
		FROM market_data_cache
		WHERE symbol = ? AND source = ? AND expires_at > ?
		ORDER BY cached_at DESC LIMIT 1`, symbol, source, time.Now())

	var e MarketCacheEntry
	err := row.Scan(&e.ID, &e.Symbol, &e.Source, &e.DataJSON, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// PutMarketCache refreshes the key: the old row (expired or not) is deleted and
// the new payload inserted with the given TTL.
func PutMarketCache(db *sql.DB, symbol, source, dataJSON string, ttl time.Duration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM market_data_cache WHERE symbol = ? AND source = ?`, symbol, source); err != nil {
		return err
	}
	now := time.Now()
	if _, err := tx.Exec(`
		INSERT INTO market_data_cache (symbol, source, data_json, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`, symbol, source, dataJSON, now, now.Add(ttl)); err != nil {
		return err
	}
	return tx.Commit()
}

// PurgeExpiredMarketCache sweeps rows past their expiry. Maintenance only;
// reads already filter on expires_at.
func PurgeExpiredMarketCache(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM market_data_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
