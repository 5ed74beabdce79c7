package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	razorpay "github.com/razorpay/razorpay-go"
)

// MethodRazorpay is the payment method recorded on settlements captured
// through this gateway.
const MethodRazorpay = "razorpay"

// CheckoutRequest describes a checkout session for a single loan settlement.
// AmountMinor is in the currency's minor unit (cents/paise); the gateway
// never sees KES major units.
type CheckoutRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	LoanID      int
	CallbackURL string
}

// CheckoutSession is the created gateway session. RedirectURL is where the
// borrower completes payment.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// CheckoutGateway is the narrow interface the settlement coordinator talks
// to. The payment provider is an external collaborator; nothing behind this
// interface is ever reimplemented here.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Method() string
}

// RazorpayGateway backs CheckoutGateway with Razorpay payment links.
type RazorpayGateway struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
	}
}

func (g *RazorpayGateway) Method() string {
	return MethodRazorpay
}

// CreateCheckoutSession creates a payment link carrying the loan id in its
// notes, so the webhook can route the confirmation back to the loan.
func (g *RazorpayGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	data := map[string]interface{}{
		"amount":      req.AmountMinor,
		"currency":    req.Currency,
		"description": req.Description,
		"notes": map[string]interface{}{
			"loan_id": strconv.Itoa(req.LoanID),
		},
		"callback_url":    req.CallbackURL,
		"callback_method": "get",
	}

	link, err := g.client.PaymentLink.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}

	id, _ := link["id"].(string)
	url, _ := link["short_url"].(string)
	if url == "" {
		return nil, fmt.Errorf("payment link response missing short_url")
	}

	return &CheckoutSession{ID: id, RedirectURL: url}, nil
}

// VerifyWebhookSignature verifies the webhook signature
func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifySignature(g.webhookSecret, body, signature)
}

// VerifySignature checks an HMAC-SHA256 hex signature over body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
