package utils

import (
	"runtime"
	"runtime/debug"
	"sync"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// HistoryStore holds the in-memory update history per (symbol, timeframe).
// The analyzers read from it; the main loop and the warm start write to it.
// -----------------------------------------------------------------------------

type HistoryStore struct {
	Streams       map[string]*RingBuffer // keyed by symbol|timeframe
	MaxMemoryMB   int
	RetentionDays int
	Logger        *logger.Logger
	mu            sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewHistoryStore(maxMemoryMB, retentionDays int, log *logger.Logger) *HistoryStore {
	return &HistoryStore{
		Streams:       make(map[string]*RingBuffer),
		MaxMemoryMB:   maxMemoryMB,
		RetentionDays: retentionDays,
		Logger:        log,
	}
}

// -----------------------------------------------------------------------------

// StreamKey builds the map key for one (symbol, timeframe) stream.
func StreamKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// -----------------------------------------------------------------------------

// Add buffers one update in its stream.
func (hs *HistoryStore) Add(update models.MMarketUpdate) {
	key := StreamKey(update.Symbol, update.Timeframe)

	hs.mu.Lock()
	buffer, ok := hs.Streams[key]
	if !ok {
		buffer = NewRingBuffer(CalculateMaxDataPoints(hs.RetentionDays, update.Timeframe))
		hs.Streams[key] = buffer
	}
	buffer.Append(update)
	size := buffer.Size()
	hs.mu.Unlock()

	// Periodic memory check
	if size%100 == 0 {
		hs.CheckMemoryLimits()
	}
}

// -----------------------------------------------------------------------------

// Latest returns the n newest updates for a stream, oldest first.
func (hs *HistoryStore) Latest(symbol, timeframe string, n int) []models.MMarketUpdate {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	buffer, ok := hs.Streams[StreamKey(symbol, timeframe)]
	if !ok || buffer.Size() == 0 {
		return nil
	}
	return buffer.GetLatest(n)
}

// -----------------------------------------------------------------------------

// LastUpdate returns the newest update for a stream, if any.
func (hs *HistoryStore) LastUpdate(symbol, timeframe string) (models.MMarketUpdate, bool) {
	latest := hs.Latest(symbol, timeframe, 1)
	if len(latest) == 0 {
		return models.MMarketUpdate{}, false
	}
	return latest[0], true
}

// -----------------------------------------------------------------------------

// HasStream reports whether any data exists for the stream.
func (hs *HistoryStore) HasStream(symbol, timeframe string) bool {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	buffer, ok := hs.Streams[StreamKey(symbol, timeframe)]
	return ok && buffer.Size() > 0
}

// -----------------------------------------------------------------------------

// StreamCount returns the number of streams holding data.
func (hs *HistoryStore) StreamCount() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return len(hs.Streams)
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits halves buffer capacities when the process exceeds the
// configured memory budget.
func (hs *HistoryStore) CheckMemoryLimits() {
	currentMemory := hs.GetProcessMemoryMB()
	if currentMemory <= float64(hs.MaxMemoryMB) {
		return
	}

	hs.Logger.Info("Memory usage %.1fMB exceeds limit %dMB. Halving history buffers.",
		currentMemory, hs.MaxMemoryMB)

	hs.mu.Lock()
	for _, buffer := range hs.Streams {
		if buffer.Capacity() > 100 {
			newCapacity := buffer.Capacity() / 2
			if newCapacity < 50 {
				newCapacity = 50
			}
			buffer.Resize(newCapacity)
		}
	}
	hs.mu.Unlock()

	// Force garbage collection
	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current process memory usage in MB
func (hs *HistoryStore) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// HeapAlloc is the closest stand-in for resident set size
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Cleanup clears all streams.
func (hs *HistoryStore) Cleanup() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	hs.Streams = make(map[string]*RingBuffer)
	runtime.GC()
	debug.FreeOSMemory()
}
