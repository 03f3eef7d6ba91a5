package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	queries := []string{
		`CREATE TABLE IF NOT EXISTS market_updates (
			symbol      TEXT,
			timeframe   TEXT,
			source      TEXT,
			timestamp   INTEGER,
			price       REAL,
			volume      REAL,
			open        REAL,
			high        REAL,
			low         REAL,
			close       REAL,
			received_at INTEGER,
			PRIMARY KEY (symbol, timeframe, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS insights (
			request_id   TEXT PRIMARY KEY,
			symbol       TEXT,
			timeframe    TEXT,
			backend      TEXT,
			partial      INTEGER,
			confidence   REAL,
			payload      TEXT,
			generated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_insights_symbol ON insights (symbol, generated_at);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveUpdatesBulk(updates []models.MMarketUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO market_updates
			(symbol, timeframe, source, timestamp, price, volume, open, high, low, close, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range updates {
		_, err := stmt.Exec(u.Symbol, u.Timeframe, u.Source, u.Timestamp,
			u.Price, u.Volume, u.Open, u.High, u.Low, u.Close, u.ReceivedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveInsight(insight *models.MInsight) error {
	payload, err := json.Marshal(insight)
	if err != nil {
		return err
	}

	_, err = d.DB.Exec(`
		INSERT OR REPLACE INTO insights
			(request_id, symbol, timeframe, backend, partial, confidence, payload, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, insight.RequestID, insight.Symbol, insight.Timeframe, insight.Backend,
		boolToInt(insight.Partial), insight.Confidence, string(payload), insight.GeneratedAt)
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) RecentUpdates(symbol, timeframe string, n int) ([]models.MMarketUpdate, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, timeframe, source, timestamp, price, volume, open, high, low, close, received_at
		FROM market_updates
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates, err := scanUpdates(rows)
	if err != nil {
		return nil, err
	}

	reverseUpdates(updates)
	return updates, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData() error {
	cutoff := time.Now().AddDate(0, 0, -d.Config.Storage.RetentionDays).UnixMilli()

	res, err := d.DB.Exec("DELETE FROM market_updates WHERE timestamp < ?", cutoff)
	if err != nil {
		return err
	}
	if _, err := d.DB.Exec("DELETE FROM insights WHERE generated_at < ?", cutoff); err != nil {
		return err
	}

	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		d.Logger.Info("Retention cleanup removed %d updates", removed)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
