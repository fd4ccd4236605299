// Package payments implements the shared-secret contract with the hosted
// payment gateway: outbound checkout signatures and inbound callback checks.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
)

var (
	errMerchantRequired = errors.New("payments merchant id is required")
	errSecretRequired   = errors.New("payments secret is required")
	errGatewayRequired  = errors.New("payments gateway url is required")
)

// Sign returns hex(HMAC-SHA256(secret, "amount|merchant|timestamp")).
func Sign(secret string, amountCents int64, merchantID string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingString(amountCents, merchantID, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

func signingString(amountCents int64, merchantID string, timestamp int64) string {
	return strconv.FormatInt(amountCents, 10) + "|" + merchantID + "|" + strconv.FormatInt(timestamp, 10)
}

// CheckoutRequest carries the redirect parameters the client posts to the gateway.
type CheckoutRequest struct {
	GatewayURL  string `json:"gateway_url"`
	MerchantID  string `json:"merchant_id"`
	OrderNumber string `json:"order_number"`
	AmountCents int64  `json:"amount_cents"`
	Timestamp   int64  `json:"timestamp"`
	Signature   string `json:"signature"`
	ReturnURL   string `json:"return_url,omitempty"`
}

// Callback is the gateway's server-to-server result notification.
type Callback struct {
	OrderNumber   string `json:"order_number" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	ResultCode    string `json:"result_code" validate:"required"`
	AmountCents   int64  `json:"amount_cents" validate:"gte=0"`
	Timestamp     int64  `json:"timestamp" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
	Message       string `json:"message,omitempty"`
}

// Gateway signs outbound requests and verifies callbacks for one merchant.
type Gateway struct {
	merchantID string
	secret     string
	gatewayURL string
	returnURL  string
	maxSkew    time.Duration
	success    map[string]struct{}
	now        func() time.Time
}

func NewGateway(cfg config.PaymentsConfig) (*Gateway, error) {
	merchant := strings.TrimSpace(cfg.MerchantID)
	if merchant == "" {
		return nil, errMerchantRequired
	}
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}
	gatewayURL := strings.TrimSpace(cfg.GatewayURL)
	if gatewayURL == "" {
		return nil, errGatewayRequired
	}
	success := make(map[string]struct{}, len(cfg.SuccessResults))
	for _, code := range cfg.SuccessResults {
		if code = strings.TrimSpace(code); code != "" {
			success[code] = struct{}{}
		}
	}
	if len(success) == 0 {
		return nil, fmt.Errorf("at least one success result code is required")
	}
	return &Gateway{
		merchantID: merchant,
		secret:     cfg.Secret,
		gatewayURL: gatewayURL,
		returnURL:  strings.TrimSpace(cfg.ReturnURL),
		maxSkew:    cfg.MaxClockSkew,
		success:    success,
		now:        time.Now,
	}, nil
}

// MerchantID returns the configured merchant identifier.
func (g *Gateway) MerchantID() string {
	return g.merchantID
}

// CheckoutRequest builds the signed redirect parameters for an order.
func (g *Gateway) CheckoutRequest(orderNumber string, amountCents int64) CheckoutRequest {
	ts := g.now().UTC().Unix()
	return CheckoutRequest{
		GatewayURL:  g.gatewayURL,
		MerchantID:  g.merchantID,
		OrderNumber: orderNumber,
		AmountCents: amountCents,
		Timestamp:   ts,
		Signature:   Sign(g.secret, amountCents, g.merchantID, ts),
		ReturnURL:   g.returnURL,
	}
}

// Verify checks the callback signature and its timestamp against the allowed skew.
func (g *Gateway) Verify(cb Callback) error {
	provided, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(cb.Signature)))
	if err != nil || len(provided) == 0 {
		return pkgerrors.Domain(pkgerrors.ReasonInvalidSignature, "malformed callback signature")
	}
	expected, _ := hex.DecodeString(Sign(g.secret, cb.AmountCents, g.merchantID, cb.Timestamp))
	if !hmac.Equal(provided, expected) {
		return pkgerrors.Domain(pkgerrors.ReasonInvalidSignature, "callback signature mismatch")
	}
	if g.maxSkew > 0 {
		skew := g.now().Sub(time.Unix(cb.Timestamp, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > g.maxSkew {
			return pkgerrors.Domain(pkgerrors.ReasonInvalidSignature, "callback timestamp outside allowed window").
				WithDetails(map[string]any{"skew_seconds": int64(skew.Seconds())})
		}
	}
	return nil
}

// IsSuccess reports whether the gateway result code means the charge settled.
func (g *Gateway) IsSuccess(resultCode string) bool {
	_, ok := g.success[strings.TrimSpace(resultCode)]
	return ok
}
