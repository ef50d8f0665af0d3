package iiko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/QODOHUB/ayami-storefront/config"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client is a typed HTTP client to the iiko POS/loyalty API. It owns the
// bearer token lifecycle: the token is refreshed when absent or older than
// the configured TTL, and once more on a 401 response.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiLogin     string
	defaultOrgID string
	tokenTTL     time.Duration
	maxRetries   int
	logger       *zap.Logger

	mu             sync.Mutex
	token          string
	tokenUpdatedAt time.Time

	now func() time.Time
}

// New creates a POS client from config.
func New(cfg config.IikoConfig) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:      cfg.BaseURL,
		apiLogin:     cfg.APILogin,
		defaultOrgID: cfg.DefaultOrganizationID,
		tokenTTL:     cfg.TokenTTL,
		maxRetries:   maxRetries,
		logger:       util.GetLogger(),
		now:          time.Now,
	}
}

// DefaultOrganizationID returns the organization the client is bound to.
func (c *Client) DefaultOrganizationID() string {
	return c.defaultOrgID
}

// FetchDelta returns the menu state changed since the given revision.
// Passing 0 requests the full menu.
func (c *Client) FetchDelta(ctx context.Context, sinceRevision int64) (*DeltaResult, error) {
	payload := map[string]interface{}{
		"organizationId": c.defaultOrgID,
	}
	if sinceRevision > 0 {
		payload["startRevision"] = sinceRevision
	}

	var result DeltaResult
	if err := c.post(ctx, "/api/1/nomenclature", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchServiceableTerminals checks which terminals can serve the address
// and delivery sum.
func (c *Client) FetchServiceableTerminals(ctx context.Context, req *ServiceabilityRequest) (*ServiceabilityResult, error) {
	var result ServiceabilityResult
	if err := c.post(ctx, "/api/1/delivery_restrictions/allowed", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCustomer fetches the loyalty profile by external customer id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*CustomerInfo, error) {
	payload := map[string]string{
		"id":             id,
		"type":           "id",
		"organizationId": c.defaultOrgID,
	}

	var result CustomerInfo
	if err := c.post(ctx, "/api/1/loyalty/iiko/customer/info", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateOrUpdateCustomer upserts a loyalty profile and returns its id.
func (c *Client) CreateOrUpdateCustomer(ctx context.Context, req *CreateOrUpdateCustomerRequest) (string, error) {
	if req.OrganizationID == "" {
		req.OrganizationID = c.defaultOrgID
	}

	var result createOrUpdateCustomerResult
	if err := c.post(ctx, "/api/1/loyalty/iiko/customer/create_or_update", req, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// GetOrganizations lists serving locations.
func (c *Client) GetOrganizations(ctx context.Context) ([]Organization, error) {
	payload := map[string]interface{}{
		"returnAdditionalInfo": false,
		"includeDisabled":      false,
	}

	var result organizationsResult
	if err := c.post(ctx, "/api/1/organizations", payload, &result); err != nil {
		return nil, err
	}
	return result.Organizations, nil
}

// CreateDelivery submits an order to the POS and returns its external id.
func (c *Client) CreateDelivery(ctx context.Context, req *DeliveryCreateRequest) (string, error) {
	var result DeliveryCreateResult
	if err := c.post(ctx, "/api/1/deliveries/create", req, &result); err != nil {
		return "", err
	}
	return result.OrderInfo.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Explicit bounded loop; each pass re-checks token age so a refresh
	// triggered by one attempt is visible to the next.
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		status, respBody, err := c.send(ctx, path, token, body)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case status == http.StatusOK:
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to decode response %s: %w", path, err)
				}
			}
			return nil
		case status == http.StatusUnauthorized:
			if err := c.refreshToken(ctx); err != nil {
				lastErr = err
				continue
			}
			lastErr = &APIError{Status: status, Body: string(respBody)}
		case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
			lastErr = &APIError{Status: status, Body: string(respBody)}
		default:
			return &APIError{Status: status, Body: string(respBody)}
		}

		c.logger.Warn("iiko request retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	return fmt.Errorf("iiko request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) send(ctx context.Context, path, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// ensureToken returns a valid bearer token, refreshing it when missing or
// older than the TTL.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	fresh := c.token != "" && c.now().Sub(c.tokenUpdatedAt) < c.tokenTTL
	token := c.token
	c.mu.Unlock()

	if fresh {
		return token, nil
	}

	if err := c.refreshToken(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) refreshToken(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"apiLogin": c.apiLogin})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/1/access_token", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result accessTokenResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	c.mu.Lock()
	c.token = result.Token
	c.tokenUpdatedAt = c.now()
	c.mu.Unlock()

	return nil
}
