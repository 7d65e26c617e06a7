package payment

import (
	"context"
	"encoding/base64"
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

	"earlykickoff-backend/internal/config"
	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/ports/adapter"
)

type memTokens struct{ vals map[string]string }

func (m *memTokens) Get(ctx context.Context, name string) (string, error) { return m.vals[name], nil }
func (m *memTokens) Store(ctx context.Context, name, token string, ttl time.Duration) error {
	m.vals[name] = token
	return nil
}
func (m *memTokens) Drop(ctx context.Context, name string) error {
	delete(m.vals, name)
	return nil
}

func newTestGateway(t *testing.T, srv *httptest.Server, tokens TokenStore) *MpesaGateway {
	t.Helper()
	g, err := NewMpesaGateway(config.MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "pass",
		CallbackURL:    "https://shop.example.com/payments/mpesa/webhook",
	}, tokens)
	require.NoError(t, err)
	g.now = func() time.Time { return time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC) }
	return g
}

func TestMpesaGateway_InitiateSTKPush(t *testing.T) {
	var oauthCalls int32
	var pushBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			atomic.AddInt32(&oauthCalls, 1)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_ = json.NewDecoder(r.Body).Decode(&pushBody)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResponseCode":      "0",
				"CustomerMessage":   "Success. Request accepted for processing",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := &memTokens{vals: map[string]string{}}
	g := newTestGateway(t, srv, tokens)

	res, err := g.InitiateSTKPush(context.Background(), adapter.STKPushRequest{
		Amount:           decimal.RequireFromString("1499.50"),
		PhoneNumber:      "254712345678",
		AccountReference: "Order 42",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)

	assert.Equal(t, "20240301102030", pushBody["Timestamp"])
	wantPwd := base64.StdEncoding.EncodeToString([]byte("174379" + "pass" + "20240301102030"))
	assert.Equal(t, wantPwd, pushBody["Password"])
	assert.EqualValues(t, 1500, pushBody["Amount"])
	assert.Equal(t, "tok-1", tokens.vals[tokenName], "token should be shared through the store")

	_, err = g.InitiateSTKPush(context.Background(), adapter.STKPushRequest{Amount: decimal.NewFromInt(1), PhoneNumber: "254712345678"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&oauthCalls), "token should be reused")
}

func TestMpesaGateway_InitiateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": "400.002.02", "errorMessage": "Bad Request - Invalid PhoneNumber"})
	}))
	defer srv.Close()

	g := newTestGateway(t, srv, nil)
	_, err := g.InitiateSTKPush(context.Background(), adapter.STKPushRequest{Amount: decimal.NewFromInt(10), PhoneNumber: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
}

func TestMpesaGateway_QuerySTKPush(t *testing.T) {
	reply := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()
	g := newTestGateway(t, srv, nil)

	t.Run("final result", func(t *testing.T) {
		reply = map[string]any{"ResponseCode": "0", "ResultCode": "1032", "ResultDesc": "Request cancelled by user"}
		res, err := g.QuerySTKPush(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.True(t, res.Final)
		assert.Equal(t, 1032, res.ResultCode)
	})

	t.Run("still processing", func(t *testing.T) {
		reply = map[string]any{"errorCode": "500.001.1001", "errorMessage": "The transaction is being processed"}
		res, err := g.QuerySTKPush(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.False(t, res.Final)
	})
}

func TestSimulatedGateway(t *testing.T) {
	g := NewSimulatedGateway()
	assert.True(t, g.Simulated())

	res, err := g.InitiateSTKPush(context.Background(), adapter.STKPushRequest{Amount: decimal.NewFromInt(5), PhoneNumber: "254700000000"})
	require.NoError(t, err)
	require.NotEmpty(t, res.CheckoutRequestID)

	q, err := g.QuerySTKPush(context.Background(), res.CheckoutRequestID)
	require.NoError(t, err)
	assert.True(t, q.Final)
	assert.Equal(t, 0, q.ResultCode)

	q, _ = g.QuerySTKPush(context.Background(), "unknown")
	assert.NotEqual(t, 0, q.ResultCode)
}
