package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/models"
)

func point(ts int64, price float64) models.MMarketUpdate {
	return models.MMarketUpdate{
		Symbol:    "EURUSD",
		Timeframe: "1m",
		Source:    "test",
		Timestamp: ts,
		Price:     price,
		Volume:    100,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}

// -----------------------------------------------------------------------------

func TestAppendAndGetAll(t *testing.T) {
	rb := NewRingBuffer(10)

	rb.Append(point(1, 1.1))
	rb.Append(point(2, 1.2))
	rb.Append(point(3, 1.3))

	all := rb.GetAll()
	require.Len(t, all, 3)
	assert.EqualValues(t, 1, all[0].Timestamp)
	assert.EqualValues(t, 3, all[2].Timestamp)
	assert.Equal(t, "EURUSD", all[0].Symbol)
	assert.Equal(t, 1.1, all[0].Price)
}

func TestWrapAroundKeepsNewest(t *testing.T) {
	rb := NewRingBuffer(3)

	for ts := int64(1); ts <= 5; ts++ {
		rb.Append(point(ts, float64(ts)))
	}

	assert.Equal(t, 3, rb.Size())
	all := rb.GetAll()
	require.Len(t, all, 3)
	assert.EqualValues(t, 3, all[0].Timestamp)
	assert.EqualValues(t, 5, all[2].Timestamp)
}

func TestGetLatestReturnsOldestFirst(t *testing.T) {
	rb := NewRingBuffer(10)
	for ts := int64(1); ts <= 6; ts++ {
		rb.Append(point(ts, float64(ts)))
	}

	latest := rb.GetLatest(2)
	require.Len(t, latest, 2)
	assert.EqualValues(t, 5, latest[0].Timestamp)
	assert.EqualValues(t, 6, latest[1].Timestamp)
}

func TestGetLatestClampsToSize(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Append(point(1, 1))

	assert.Len(t, rb.GetLatest(50), 1)
	assert.Empty(t, rb.GetLatest(0))
	assert.Empty(t, NewRingBuffer(10).GetLatest(5))
}

func TestResizeKeepsNewestEntries(t *testing.T) {
	rb := NewRingBuffer(10)
	for ts := int64(1); ts <= 8; ts++ {
		rb.Append(point(ts, float64(ts)))
	}

	rb.Resize(4)

	assert.Equal(t, 4, rb.Capacity())
	assert.Equal(t, 4, rb.Size())
	all := rb.GetAll()
	assert.EqualValues(t, 5, all[0].Timestamp)
	assert.EqualValues(t, 8, all[3].Timestamp)
}

func TestRestoreRoundTripsFields(t *testing.T) {
	rb := NewRingBuffer(4)
	u := models.MMarketUpdate{
		Symbol: "AAPL", Timeframe: "5m", Source: "feed",
		Timestamp: 42, Price: 190.5, Volume: 777,
		Open: 189, High: 191, Low: 188.5, Close: 190.5,
	}
	rb.Append(u)

	got := rb.GetAll()[0]
	assert.Equal(t, u.Symbol, got.Symbol)
	assert.Equal(t, u.Timeframe, got.Timeframe)
	assert.Equal(t, u.Source, got.Source)
	assert.Equal(t, u.Timestamp, got.Timestamp)
	assert.Equal(t, u.Price, got.Price)
	assert.Equal(t, u.Volume, got.Volume)
	assert.Equal(t, u.High, got.High)
}

// -----------------------------------------------------------------------------

func TestCalculateMaxDataPoints(t *testing.T) {
	// 7 days of 1m data exceeds the cap
	assert.Equal(t, 10000, CalculateMaxDataPoints(7, "1m"))

	// 7 days of 1h data fits: 7 * 24
	assert.Equal(t, 168, CalculateMaxDataPoints(7, "1h"))

	// Daily timeframe hits the floor
	assert.Equal(t, 100, CalculateMaxDataPoints(7, "1d"))

	// Unknown timeframe falls back to one minute granularity
	assert.Equal(t, CalculateMaxDataPoints(7, "1m"), CalculateMaxDataPoints(7, "bogus"))
}
