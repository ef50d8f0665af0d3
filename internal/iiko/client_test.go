package iiko

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/QODOHUB/ayami-storefront/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.IikoConfig{
		BaseURL:               srv.URL,
		APILogin:              "test-login",
		DefaultOrganizationID: "org-1",
		TokenTTL:              55 * time.Minute,
		MaxRetries:            3,
	})
	return c, srv
}

func writeToken(w http.ResponseWriter, token string) {
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func TestTokenFetchedLazilyAndReused(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/organizations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(organizationsResult{
			Organizations: []Organization{{ID: "org-1"}},
		})
	})

	c, _ := testClient(t, mux)

	for i := 0; i < 3; i++ {
		orgs, err := c.GetOrganizations(context.Background())
		require.NoError(t, err)
		require.Len(t, orgs, 1)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestTokenRefreshedAfterTTL(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/organizations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(organizationsResult{})
	})

	c, _ := testClient(t, mux)

	current := time.Now()
	c.now = func() time.Time { return current }

	_, err := c.GetOrganizations(context.Background())
	require.NoError(t, err)

	// Within the TTL the token is reused; past it a new one is fetched.
	current = current.Add(54 * time.Minute)
	_, err = c.GetOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))

	current = current.Add(2 * time.Minute)
	_, err = c.GetOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestUnauthorizedTriggersRefreshAndRetry(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		if n == 1 {
			writeToken(w, "expired")
		} else {
			writeToken(w, "valid")
		}
	})
	mux.HandleFunc("/api/1/organizations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(organizationsResult{
			Organizations: []Organization{{ID: "org-1"}},
		})
	})

	c, _ := testClient(t, mux)

	orgs, err := c.GetOrganizations(context.Background())
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestServerErrorsRetriedWithBound(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/organizations", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	c, _ := testClient(t, mux)

	_, err := c.GetOrganizations(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/nomenclature", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	c, _ := testClient(t, mux)

	_, err := c.FetchDelta(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchDeltaOmitsZeroStartRevision(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/nomenclature", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		assert.Equal(t, "org-1", payload["organizationId"])
		_, hasStart := payload["startRevision"]
		assert.False(t, hasStart)

		_ = json.NewEncoder(w).Encode(DeltaResult{Revision: 11})
	})

	c, _ := testClient(t, mux)

	delta, err := c.FetchDelta(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(11), delta.Revision)
}

func TestFetchDeltaPassesStartRevision(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/nomenclature", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(7), payload["startRevision"])

		_ = json.NewEncoder(w).Encode(DeltaResult{Revision: 12})
	})

	c, _ := testClient(t, mux)

	_, err := c.FetchDelta(context.Background(), 7)
	require.NoError(t, err)
}

func TestCreateDeliveryReturnsExternalID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok-1")
	})
	mux.HandleFunc("/api/1/deliveries/create", func(w http.ResponseWriter, r *http.Request) {
		var req DeliveryCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "org-1", req.OrganizationID)

		var result DeliveryCreateResult
		result.OrderInfo.ID = "pos-order-1"
		_ = json.NewEncoder(w).Encode(result)
	})

	c, _ := testClient(t, mux)

	id, err := c.CreateDelivery(context.Background(), &DeliveryCreateRequest{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, "pos-order-1", id)
}

func TestBonusBalanceSumsWallets(t *testing.T) {
	info := CustomerInfo{WalletBalances: []WalletBalance{
		{Balance: 120.5},
		{Balance: 30},
	}}
	assert.Equal(t, int64(15050), info.BonusBalanceMinor())
}
