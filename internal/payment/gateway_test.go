package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/QODOHUB/ayami-storefront/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.PaymentConfig{
		BaseURL:   srv.URL,
		ShopID:    "shop-1",
		SecretKey: "secret",
		Currency:  "RUB",
	})
}

func TestCreateIntent(t *testing.T) {
	var captured createPaymentRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		var resp paymentResponse
		resp.ID = "intent-1"
		resp.Status = "pending"
		resp.Confirmation.ConfirmationURL = "https://pay.example/intent-1"
		_ = json.NewEncoder(w).Encode(resp)
	})

	g := testGateway(t, mux)

	intent, err := g.CreateIntent(context.Background(), 45050, "https://shop.example/return", "order")
	require.NoError(t, err)

	assert.Equal(t, "intent-1", intent.ID)
	assert.Equal(t, "https://pay.example/intent-1", intent.RedirectURL)

	// Minor units become a decimal string.
	assert.Equal(t, "450.50", captured.Amount.Value)
	assert.Equal(t, "RUB", captured.Amount.Currency)
	assert.Equal(t, "redirect", captured.Confirmation.Type)
	assert.True(t, captured.Capture)
}

func TestGetStatusMapping(t *testing.T) {
	cases := map[string]Status{
		"succeeded":           StatusSucceeded,
		"pending":             StatusPending,
		"waiting_for_capture": StatusPending,
		"canceled":            StatusFailed,
	}

	for raw, want := range cases {
		raw, want := raw, want
		t.Run(raw, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/payments/intent-1", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(paymentResponse{ID: "intent-1", Status: raw})
			})

			g := testGateway(t, mux)

			status, err := g.GetStatus(context.Background(), "intent-1")
			require.NoError(t, err)
			assert.Equal(t, want, status)
		})
	}
}

func TestGatewayErrorSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	g := testGateway(t, mux)

	_, err := g.CreateIntent(context.Background(), 100, "", "")
	assert.Error(t, err)
}
