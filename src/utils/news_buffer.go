package utils

import (
	"sync"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// NewsBuffer keeps the most recent headlines per symbol for the sentiment
// analyzer. Bounded per symbol; older items fall off silently.
// -----------------------------------------------------------------------------

type NewsBuffer struct {
	items    map[string][]models.MNewsItem
	perLimit int
	mu       sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewNewsBuffer(perSymbolLimit int) *NewsBuffer {
	if perSymbolLimit <= 0 {
		perSymbolLimit = 100
	}
	return &NewsBuffer{
		items:    make(map[string][]models.MNewsItem),
		perLimit: perSymbolLimit,
	}
}

// -----------------------------------------------------------------------------

// Add appends a headline, evicting the oldest when the symbol is at limit.
func (nb *NewsBuffer) Add(item models.MNewsItem) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	list := append(nb.items[item.Symbol], item)
	if len(list) > nb.perLimit {
		list = list[len(list)-nb.perLimit:]
	}
	nb.items[item.Symbol] = list
}

// -----------------------------------------------------------------------------

// Recent returns up to n newest headlines for symbol, newest last.
func (nb *NewsBuffer) Recent(symbol string, n int) []models.MNewsItem {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	list := nb.items[symbol]
	if len(list) == 0 || n <= 0 {
		return nil
	}
	if n > len(list) {
		n = len(list)
	}

	out := make([]models.MNewsItem, n)
	copy(out, list[len(list)-n:])
	return out
}

// -----------------------------------------------------------------------------

// Count returns the number of buffered headlines for symbol.
func (nb *NewsBuffer) Count(symbol string) int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return len(nb.items[symbol])
}
