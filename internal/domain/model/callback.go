package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"earlykickoff-backend/internal/domain"
)

// GatewayCallback is the parsed STK push result envelope.
type GatewayCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Items             map[string]any
}

// Succeeded reports the gateway's success sentinel.
func (c *GatewayCallback) Succeeded() bool { return c.ResultCode == 0 }

// ReceiptNumber returns the final receipt id when the gateway supplied one.
func (c *GatewayCallback) ReceiptNumber() string {
	switch v := c.Items["MpesaReceiptNumber"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

type stkCallbackBody struct {
	MerchantRequestID string          `json:"MerchantRequestID"`
	CheckoutRequestID string          `json:"CheckoutRequestID"`
	ResultCode        json.RawMessage `json:"ResultCode"`
	ResultDesc        string          `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []struct {
			Name  string `json:"Name"`
			Value any    `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

type stkEnvelope struct {
	STKCallback *stkCallbackBody `json:"stkCallback"`
	Body        *struct {
		STKCallback *stkCallbackBody `json:"stkCallback"`
	} `json:"Body"`
}

// ErrMalformedCallback is returned when the body is not JSON at all.
var ErrMalformedCallback = fmt.Errorf("%w: malformed callback body", domain.ErrInvalidArgument)

// ErrMissingCallback is returned for JSON bodies without an stkCallback object
// or without a CheckoutRequestID.
var ErrMissingCallback = fmt.Errorf("%w: invalid payload", domain.ErrInvalidArgument)

// ParseSTKCallback accepts both the bare {stkCallback:{...}} shape and the
// {Body:{stkCallback:{...}}} shape the gateway posts in production.
func ParseSTKCallback(raw []byte) (*GatewayCallback, error) {
	var env stkEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	body := env.STKCallback
	if body == nil && env.Body != nil {
		body = env.Body.STKCallback
	}
	if body == nil || strings.TrimSpace(body.CheckoutRequestID) == "" {
		return nil, ErrMissingCallback
	}

	code, err := parseResultCode(body.ResultCode)
	if err != nil {
		return nil, ErrMissingCallback
	}

	cb := &GatewayCallback{
		MerchantRequestID: body.MerchantRequestID,
		CheckoutRequestID: strings.TrimSpace(body.CheckoutRequestID),
		ResultCode:        code,
		ResultDesc:        body.ResultDesc,
		Items:             map[string]any{},
	}
	if body.CallbackMetadata != nil {
		for _, it := range body.CallbackMetadata.Item {
			cb.Items[it.Name] = it.Value
		}
	}
	return cb, nil
}

// parseResultCode tolerates the code arriving as a number or a numeric string.
func parseResultCode(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, domain.ErrInvalidArgument
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
