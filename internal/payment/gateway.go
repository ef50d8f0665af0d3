package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/QODOHUB/ayami-storefront/config"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Status is the gateway-reported state of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Intent is a created payment the customer must complete out of band.
type Intent struct {
	ID          string
	RedirectURL string
}

// Gateway is a thin facade over the payment provider REST API.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	currency   string
	logger     *zap.Logger
}

// New creates a gateway facade from config.
func New(cfg config.PaymentConfig) *Gateway {
	return &Gateway{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   cfg.BaseURL,
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		currency:  cfg.Currency,
		logger:    util.GetLogger(),
	}
}

type createPaymentRequest struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Capture     bool   `json:"capture"`
	Description string `json:"description"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreateIntent creates a payment for the given amount in minor units and
// returns the intent id with the redirect URL for the customer.
func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, returnURL, description string) (*Intent, error) {
	var req createPaymentRequest
	req.Amount.Value = fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
	req.Amount.Currency = g.currency
	req.Confirmation.Type = "redirect"
	req.Confirmation.ReturnURL = returnURL
	req.Capture = true
	req.Description = description

	var resp paymentResponse
	if err := g.do(ctx, http.MethodPost, "/payments", uuid.New().String(), &req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	util.PaymentIntentsTotal.Inc()
	g.logger.Info("Payment intent created",
		zap.String("intent_id", resp.ID),
		zap.Int64("amount", amountMinor))

	return &Intent{ID: resp.ID, RedirectURL: resp.Confirmation.ConfirmationURL}, nil
}

// GetStatus reports the current state of a payment intent.
func (g *Gateway) GetStatus(ctx context.Context, intentID string) (Status, error) {
	var resp paymentResponse
	if err := g.do(ctx, http.MethodGet, "/payments/"+intentID, "", nil, &resp); err != nil {
		return StatusFailed, fmt.Errorf("failed to get payment status: %w", err)
	}

	switch resp.Status {
	case "succeeded":
		return StatusSucceeded, nil
	case "pending", "waiting_for_capture":
		return StatusPending, nil
	default:
		return StatusFailed, nil
	}
}

func (g *Gateway) do(ctx context.Context, method, path, idempotenceKey string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, respBody)
	}

	return json.Unmarshal(respBody, out)
}
