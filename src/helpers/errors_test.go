package helpers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapError(KindDisconnected, cause, "client gone")

	wrapped := fmt.Errorf("delivery failed: %w", err)

	assert.Equal(t, KindDisconnected, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDisconnected))
	assert.Equal(t, "CN_001", CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, err)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, "GW_000", CodeOf(errors.New("nope")))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("nope")))
}

func TestEveryKindHasAWireCode(t *testing.T) {
	kinds := []ErrorKind{
		KindNoData, KindBadTimeframe,
		KindRateLimited, KindCircuitOpen, KindTimeout, KindNoContext,
		KindDeadlineExceeded, KindAuthFailed, KindDisconnected,
		KindUpstreamUnavailable, KindValidation,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, wireCodes[k], "kind %s", k)
	}
}

func TestMarketDataWireCodes(t *testing.T) {
	assert.Equal(t, "MD_001", CodeOf(NewError(KindNoData, "no points buffered")))
	assert.Equal(t, "MD_002", CodeOf(NewError(KindBadTimeframe, "bad timeframe")))
}
