package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/logger"
	"fxengine/internal/model"
)

func closedOrder(status model.OrderStatus) model.Order {
	return model.Order{
		Side:          model.SideBuy,
		Status:        status,
		OpenPrice:     decimal.RequireFromString("1.1005"),
		ClosePrice:    decimal.RequireFromString("1.102"),
		CurrentProfit: 150,
		Swap:          decimal.RequireFromString("-5.46"),
		Elapsed:       90 * time.Minute,
	}
}

func TestOrderAlert(t *testing.T) {
	a := OrderAlert("EURUSD", closedOrder(model.StatusCloseTP), decimal.NewFromInt(144))
	assert.Equal(t, AlertInfo, a.Level)
	assert.Equal(t, "EURUSD BUY CLOSE_TP", a.Title)
	assert.Contains(t, a.Message, "profit 150")
	assert.Contains(t, a.Message, "swap -5.46")
	assert.Contains(t, a.Message, "balance 144.00")

	assert.Equal(t, AlertWarning, OrderAlert("EURUSD", closedOrder(model.StatusCloseSL), decimal.Zero).Level)
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0, logger.Discard())
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"}))
	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "t", got["title"])
	assert.NotEmpty(t, got["ts"])
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, 0, logger.Discard()).Send(context.Background(), Alert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_Throttles(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2, logger.Discard())
	ctx := context.Background()
	require.NoError(t, n.Send(ctx, Alert{}))
	require.NoError(t, n.Send(ctx, Alert{}))
	assert.ErrorIs(t, n.Send(ctx, Alert{}), ErrThrottled)
	assert.Equal(t, int32(2), hits.Load())
}

type recorder struct {
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestOrderAlerts(t *testing.T) {
	rec := &recorder{}
	sink := OrderAlerts{N: rec}
	orders := []model.Order{closedOrder(model.StatusCloseTP), closedOrder(model.StatusCloseSL)}

	require.NoError(t, sink.RecordClosed(context.Background(), "EURUSD", orders, decimal.Zero))
	assert.Len(t, rec.alerts, 2)

	rec.err = ErrThrottled
	assert.NoError(t, sink.RecordClosed(context.Background(), "EURUSD", orders, decimal.Zero))

	rec.err = errors.New("down")
	assert.Error(t, sink.RecordClosed(context.Background(), "EURUSD", orders, decimal.Zero))
}
