package interfaces

import "market-gateway/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveUpdatesBulk inserts a batch of market updates in one transaction.
	SaveUpdatesBulk(updates []models.MMarketUpdate) error

	// -----------------------------------------------------------------------------

	// SaveInsight records a produced insight for audit.
	SaveInsight(insight *models.MInsight) error

	// -----------------------------------------------------------------------------

	// RecentUpdates loads the newest n updates for a symbol and timeframe,
	// oldest first. Used to warm the history buffers at boot.
	RecentUpdates(symbol, timeframe string, n int) ([]models.MMarketUpdate, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
