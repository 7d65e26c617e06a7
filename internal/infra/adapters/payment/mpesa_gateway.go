package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"earlykickoff-backend/internal/config"
	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*MpesaGateway)(nil)

// TokenStore shares OAuth tokens between replicas. Get returns "" on a miss.
type TokenStore interface {
	Get(ctx context.Context, name string) (string, error)
	Store(ctx context.Context, name, token string, ttl time.Duration) error
	Drop(ctx context.Context, name string) error
}

const (
	stkTimestampLayout = "20060102150405"
	tokenName          = "oauth"
)

// MpesaGateway implements adapter.PaymentGateway against the Daraja API:
// OAuth client credentials, STK push and STK push query.
type MpesaGateway struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	client         *http.Client
	tokens         TokenStore
	now            func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewMpesaGateway(cfg config.MpesaConfig, tokens TokenStore) (*MpesaGateway, error) {
	if !cfg.Configured() {
		return nil, errors.New("mpesa credentials incomplete")
	}
	if _, err := url.Parse(cfg.CallbackURL); err != nil || cfg.CallbackURL == "" {
		return nil, fmt.Errorf("invalid callback url %q", cfg.CallbackURL)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://sandbox.safaricom.co.ke"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MpesaGateway{
		baseURL:        base,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		client:         &http.Client{Timeout: timeout},
		tokens:         tokens,
		now:            time.Now,
	}, nil
}

func (g *MpesaGateway) Name() string    { return "mpesa" }
func (g *MpesaGateway) Simulated() bool { return false }

// password is base64(shortcode + passkey + timestamp) as Daraja expects.
func (g *MpesaGateway) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.shortCode + g.passkey + ts))
}

func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.now().Before(g.tokenExp) {
		return g.token, nil
	}
	if g.tokens != nil {
		if tok, err := g.tokens.Get(ctx, tokenName); err == nil && tok != "" {
			g.token, g.tokenExp = tok, g.now().Add(time.Minute)
			return tok, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: oauth: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: oauth http %d", domain.ErrGateway, resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("%w: oauth response unreadable", domain.ErrGateway)
	}
	ttl := 3599 * time.Second
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	// renew a minute early
	ttl -= time.Minute
	g.token, g.tokenExp = out.AccessToken, g.now().Add(ttl)
	if g.tokens != nil {
		_ = g.tokens.Store(ctx, tokenName, out.AccessToken, ttl)
	}
	return out.AccessToken, nil
}

func (g *MpesaGateway) dropToken(ctx context.Context) {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
	if g.tokens != nil {
		_ = g.tokens.Drop(ctx, tokenName)
	}
}

// post sends an authorised JSON call and retries once with a fresh token on 401.
func (g *MpesaGateway) post(ctx context.Context, path string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		tok, err := g.accessToken(ctx)
		if err != nil {
			return 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := g.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrGateway, err)
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			g.dropToken(ctx)
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: http %d: unreadable body", domain.ErrGateway, resp.StatusCode)
		}
		return resp.StatusCode, nil
	}
	return http.StatusUnauthorized, fmt.Errorf("%w: unauthorized", domain.ErrGateway)
}

// InitiateSTKPush calls /mpesa/stkpush/v1/processrequest. Daraja only
// takes whole shillings, so the amount is rounded up.
func (g *MpesaGateway) InitiateSTKPush(ctx context.Context, in adapter.STKPushRequest) (res adapter.STKPushResult, err error) {
	defer func() { metrics.IncGatewayRequest("stk_push", err) }()

	ts := g.now().Format(stkTimestampLayout)
	payload := map[string]any{
		"BusinessShortCode": g.shortCode,
		"Password":          g.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount.Ceil().IntPart(),
		"PartyA":            in.PhoneNumber,
		"PartyB":            g.shortCode,
		"PhoneNumber":       in.PhoneNumber,
		"CallBackURL":       g.callbackURL,
		"AccountReference":  truncate(in.AccountReference, 12),
		"TransactionDesc":   truncate(orDefault(in.Description, "Payment"), 13),
	}
	var out struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
		ErrorMessage        string `json:"errorMessage"`
	}
	status, err := g.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &out)
	if err != nil {
		return adapter.STKPushResult{}, err
	}
	if status >= 300 || out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.ResponseDescription
		}
		return adapter.STKPushResult{}, fmt.Errorf("%w: stk push rejected (http %d): %s", domain.ErrGateway, status, msg)
	}
	return adapter.STKPushResult{
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: out.CheckoutRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// QuerySTKPush calls /mpesa/stkpushquery/v1/query. While the customer has
// not answered, Daraja returns an error code instead of a ResultCode.
func (g *MpesaGateway) QuerySTKPush(ctx context.Context, checkoutRequestID string) (res adapter.STKQueryResult, err error) {
	defer func() { metrics.IncGatewayRequest("stk_query", err) }()

	ts := g.now().Format(stkTimestampLayout)
	payload := map[string]any{
		"BusinessShortCode": g.shortCode,
		"Password":          g.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var out struct {
		ResponseCode string          `json:"ResponseCode"`
		ResultCode   json.RawMessage `json:"ResultCode"`
		ResultDesc   string          `json:"ResultDesc"`
		ErrorCode    string          `json:"errorCode"`
		ErrorMessage string          `json:"errorMessage"`
	}
	status, err := g.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &out)
	if err != nil {
		return adapter.STKQueryResult{}, err
	}
	if out.ErrorCode != "" || len(out.ResultCode) == 0 {
		// 500.001.1001 "The transaction is being processed"
		if strings.HasPrefix(out.ErrorCode, "500.001") {
			return adapter.STKQueryResult{Final: false, ResultDesc: out.ErrorMessage}, nil
		}
		return adapter.STKQueryResult{}, fmt.Errorf("%w: stk query (http %d): %s %s", domain.ErrGateway, status, out.ErrorCode, out.ErrorMessage)
	}
	code, err := strconv.Atoi(strings.Trim(string(out.ResultCode), `"`))
	if err != nil {
		return adapter.STKQueryResult{}, fmt.Errorf("%w: result code %s", domain.ErrGateway, out.ResultCode)
	}
	return adapter.STKQueryResult{Final: true, ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDefault(s, d string) string {
	if strings.TrimSpace(s) == "" {
		return d
	}
	return s
}
