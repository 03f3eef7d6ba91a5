package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/helpers"
	"market-gateway/src/logger"
	"market-gateway/src/models"
)

func validationServer() *GatewayServer {
	return &GatewayServer{
		Config: &models.MConfig{
			Gateway:  models.MGatewayConfig{MaxRequestTimeoutMs: 30000},
			Analysis: models.MAnalysisConfig{DefaultTimeoutMs: 10000},
		},
		Logger: logger.NewLogger(nil, "gateway-test"),
	}
}

// -----------------------------------------------------------------------------

func TestSubscriptionKeyValidation(t *testing.T) {
	key, err := subscriptionKey(&models.MClientMessage{Symbol: "EURUSD", Timeframe: "1m"})
	require.NoError(t, err)
	assert.Equal(t, models.TopicMarket, key.Topic)

	_, err = subscriptionKey(&models.MClientMessage{Timeframe: "1m"})
	assert.True(t, helpers.IsKind(err, helpers.KindValidation))

	_, err = subscriptionKey(&models.MClientMessage{Symbol: "EURUSD", Timeframe: "7m"})
	assert.True(t, helpers.IsKind(err, helpers.KindBadTimeframe))
	assert.Equal(t, "MD_002", helpers.CodeOf(err))

	_, err = subscriptionKey(&models.MClientMessage{Topic: "orders", Symbol: "EURUSD", Timeframe: "1m"})
	assert.True(t, helpers.IsKind(err, helpers.KindValidation))
}

// -----------------------------------------------------------------------------

func TestAnalysisRequestValidation(t *testing.T) {
	s := validationServer()
	c := testClient("c1", 4)
	c.Principal = "tester"

	req, err := s.analysisRequest(c, &models.MClientMessage{
		RequestID: "r1", Symbol: "EURUSD",
		Kinds: []string{models.KindTechnical},
	})
	require.NoError(t, err)
	assert.Equal(t, "tester", req.Principal)
	assert.Equal(t, "1m", req.Timeframe)
	assert.Equal(t, 10000, req.TimeoutMs)

	_, err = s.analysisRequest(c, &models.MClientMessage{
		Symbol: "EURUSD", Kinds: []string{"astrology"},
	})
	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindValidation))

	_, err = s.analysisRequest(c, &models.MClientMessage{
		Symbol: "EURUSD",
	})
	assert.True(t, helpers.IsKind(err, helpers.KindValidation))
}

func TestAnalysisTimeoutCapped(t *testing.T) {
	s := validationServer()
	c := testClient("c1", 4)

	req, err := s.analysisRequest(c, &models.MClientMessage{
		Symbol: "EURUSD", Kinds: []string{models.KindTechnical}, TimeoutMs: 120000,
	})
	require.NoError(t, err)
	assert.Equal(t, 30000, req.TimeoutMs)
}

// -----------------------------------------------------------------------------

func TestDrainingConnectionRejectsRequests(t *testing.T) {
	s := validationServer()
	c := testClient("c1", 4)
	c.setState(StateDraining)

	keep := s.handleClientMessage(c, []byte(`{"type":"subscribe","request_id":"r1","symbol":"EURUSD","timeframe":"1m"}`))
	assert.False(t, keep)

	msgs := drain(c)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, "CN_001", msgs[0].Error.Code)
	assert.Equal(t, "r1", msgs[0].RequestID)
}

func TestErrorMessageCarriesWireCode(t *testing.T) {
	msg := errorMessage("r1", helpers.NewError(helpers.KindNoContext, "nothing usable"))

	assert.Equal(t, models.MsgError, msg.Type)
	assert.Equal(t, models.StatusError, msg.Status)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "AN_002", msg.Error.Code)
	assert.Equal(t, "no_context", msg.Error.Kind)
	assert.Equal(t, "nothing usable", msg.Error.Message)
}

func TestErrorMessageHidesRawErrors(t *testing.T) {
	msg := errorMessage("r1", assert.AnError)

	require.NotNil(t, msg.Error)
	assert.Equal(t, "GW_000", msg.Error.Code)
	assert.Equal(t, "internal error", msg.Error.Message)
	assert.NotContains(t, msg.Error.Message, assert.AnError.Error())
}
