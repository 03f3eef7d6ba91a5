package utils

import (
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a circular buffer of market updates. Capacity only
// changes through Resize, which keeps the newest points.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data      [][models.RB_NUM_FEATURES]float64
	symbol    string
	timeframe string
	source    string
	capacity  int
	index     int // Next write position
	size      int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a market update (Strict Type)
func (rb *RingBuffer) Append(point models.MMarketUpdate) {
	rb.symbol = point.Symbol
	rb.timeframe = point.Timeframe
	rb.source = point.Source

	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(point.Timestamp),
		point.Price,
		point.Volume,
		point.Open,
		point.High,
		point.Low,
		point.Close,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n latest records, oldest first
func (rb *RingBuffer) GetLatest(n int) []models.MMarketUpdate {
	if rb.size == 0 || n <= 0 {
		return []models.MMarketUpdate{}
	}

	// Calculate how many to return
	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MMarketUpdate, count)

	// Calculate starting index (latest data is at index-1)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.restore(idx)
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns the full history, oldest first
func (rb *RingBuffer) GetAll() []models.MMarketUpdate {
	return rb.GetLatest(rb.size)
}

// -----------------------------------------------------------------------------

// Size returns the current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Capacity returns the fixed capacity
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Resize replaces the backing array with a new capacity, keeping the newest
// entries. Only the history store calls this, under memory pressure.
func (rb *RingBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == rb.capacity {
		return
	}

	kept := rb.GetLatest(newCapacity)

	rb.data = make([][models.RB_NUM_FEATURES]float64, newCapacity)
	rb.capacity = newCapacity
	rb.index = 0
	rb.size = 0

	for _, point := range kept {
		rb.Append(point)
	}
}

// -----------------------------------------------------------------------------

// restore rebuilds the typed update from one row
func (rb *RingBuffer) restore(idx int) models.MMarketUpdate {
	row := rb.data[idx]
	return models.MMarketUpdate{
		Symbol:    rb.symbol,
		Timeframe: rb.timeframe,
		Source:    rb.source,
		Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
		Price:     row[models.RB_IDX_PRICE],
		Volume:    row[models.RB_IDX_VOLUME],
		Open:      row[models.RB_IDX_OPEN],
		High:      row[models.RB_IDX_HIGH],
		Low:       row[models.RB_IDX_LOW],
		Close:     row[models.RB_IDX_CLOSE],
	}
}
