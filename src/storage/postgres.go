package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS market_updates (
			symbol      TEXT,
			timeframe   TEXT,
			source      TEXT,
			timestamp   BIGINT,
			price       DOUBLE PRECISION,
			volume      DOUBLE PRECISION,
			open        DOUBLE PRECISION,
			high        DOUBLE PRECISION,
			low         DOUBLE PRECISION,
			close       DOUBLE PRECISION,
			received_at BIGINT,
			PRIMARY KEY (symbol, timeframe, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS insights (
			request_id   TEXT PRIMARY KEY,
			symbol       TEXT,
			timeframe    TEXT,
			backend      TEXT,
			partial      BOOLEAN,
			confidence   DOUBLE PRECISION,
			payload      JSONB,
			generated_at BIGINT
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

func (d *PostgresDB) SaveUpdatesBulk(updates []models.MMarketUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO market_updates
			(symbol, timeframe, source, timestamp, price, volume, open, high, low, close, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			price = EXCLUDED.price, volume = EXCLUDED.volume,
			open = EXCLUDED.open, high = EXCLUDED.high,
			low = EXCLUDED.low, close = EXCLUDED.close,
			received_at = EXCLUDED.received_at
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

func (d *PostgresDB) SaveInsight(insight *models.MInsight) error {
	payload, err := json.Marshal(insight)
	if err != nil {
		return err
	}

	_, err = d.DB.Exec(`
		INSERT INTO insights
			(request_id, symbol, timeframe, backend, partial, confidence, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`, insight.RequestID, insight.Symbol, insight.Timeframe, insight.Backend,
		insight.Partial, insight.Confidence, string(payload), insight.GeneratedAt)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RecentUpdates(symbol, timeframe string, n int) ([]models.MMarketUpdate, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, timeframe, source, timestamp, price, volume, open, high, low, close, received_at
		FROM market_updates
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT $3
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

func (d *PostgresDB) CleanupOldData() error {
	cutoff := time.Now().AddDate(0, 0, -d.Config.Storage.RetentionDays).UnixMilli()

	res, err := d.DB.Exec("DELETE FROM market_updates WHERE timestamp < $1", cutoff)
	if err != nil {
		return err
	}
	if _, err := d.DB.Exec("DELETE FROM insights WHERE generated_at < $1", cutoff); err != nil {
		return err
	}

	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		d.Logger.Info("Retention cleanup removed %d updates", removed)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
