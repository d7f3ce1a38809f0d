package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPGateway(HTTPConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestCreateSession_Success(t *testing.T) {
	var gotReq createSessionRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(createSessionResponse{SessionID: "sess_42"})
	})

	s, err := gw.CreateSession(context.Background(), 36000, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "sess_42", s.Ref)
	assert.Equal(t, int64(36000), s.Amount)
	assert.Equal(t, int64(36000), gotReq.Amount)
	assert.Equal(t, "key-1", gotReq.IdempotencyKey)
}

func TestCreateSession_ServerErrorIsUnavailable(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.CreateSession(context.Background(), 100, "key-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestConfirm_Statuses(t *testing.T) {
	status := "paid"
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/sess_42/confirm", r.URL.Path)
		_ = json.NewEncoder(w).Encode(confirmResponse{Status: status, TxnID: "txn_7"})
	})

	c, err := gw.Confirm(context.Background(), "sess_42")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, c.Status)
	assert.Equal(t, "txn_7", c.GatewayTxnID)

	status = "failed"
	c, err = gw.Confirm(context.Background(), "sess_42")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, c.Status)

	status = "settling"
	_, err = gw.Confirm(context.Background(), "sess_42")
	require.Error(t, err)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for range 5 {
		_, err := gw.CreateSession(ctx, 100, "key-1")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, 5, calls)

	// Breaker is now open: the gateway is no longer hit.
	_, err := gw.CreateSession(ctx, 100, "key-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 5, calls)
}
