package interfaces

import (
	"context"
	"sync"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// IFeedSource interface for components producing normalized market updates.
// -----------------------------------------------------------------------------

type IFeedSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchInitialData retrieves a backlog of recent updates per symbol,
	// used to prime the history buffers at boot.
	FetchInitialData() (map[string][]models.MMarketUpdate, error)

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source streams rather than polls
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// UpdateSymbols replaces the list of symbols being watched
	UpdateSymbols(symbols []string) error

	// -----------------------------------------------------------------------------

	// Symbols returns the currently watched symbols
	Symbols() []string

	// -----------------------------------------------------------------------------

	// Start begins producing updates.
	// ctx: controls the lifecycle (cancellation stops the source)
	// out: channel updates are pushed onto
	// wg: signals when the source has fully stopped
	Start(ctx context.Context, out chan<- *models.MMarketUpdate, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source (cancelling the Start context is preferred)
	Stop() error
}
