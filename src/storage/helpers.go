package storage

import (
	"database/sql"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Scan helpers shared by both drivers.
// -----------------------------------------------------------------------------

func scanUpdates(rows *sql.Rows) ([]models.MMarketUpdate, error) {
	var updates []models.MMarketUpdate
	for rows.Next() {
		var u models.MMarketUpdate
		if err := rows.Scan(&u.Symbol, &u.Timeframe, &u.Source, &u.Timestamp,
			&u.Price, &u.Volume, &u.Open, &u.High, &u.Low, &u.Close, &u.ReceivedAt); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// -----------------------------------------------------------------------------

// reverseUpdates flips newest-first query results to oldest-first.
func reverseUpdates(updates []models.MMarketUpdate) {
	for i, j := 0, len(updates)-1; i < j; i, j = i+1, j-1 {
		updates[i], updates[j] = updates[j], updates[i]
	}
}

// -----------------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
