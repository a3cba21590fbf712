package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

func sampleBatch() types.ImportBatch {
	return types.ImportBatch{
		{
			Amount:     decimal.NewFromInt(50000),
			OccurredAt: civil.Date{Year: 2024, Month: time.March, Day: 15},
			DonorName:  "Juan",
		},
		{
			Amount:      decimal.RequireFromString("12.50"),
			OccurredAt:  civil.Date{Year: 2024, Month: time.January, Day: 1},
			Description: "Alimento",
		},
	}
}

func newClient(t *testing.T, url string, mutate func(*config.CollectorSettings)) *Client {
	t.Helper()
	cfg := config.CollectorSettings{Endpoint: url, Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestSubmitSendsBrowserStyleRequest(t *testing.T) {
	var (
		gotHeaders http.Header
		gotCookie  string
		gotBody    map[string][]map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/donaciones/import", r.URL.Path)
		gotHeaders = r.Header.Clone()
		if c, err := r.Cookie("laravel_session"); err == nil {
			gotCookie = c.Value
		}
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Se importaron 2 donaciones correctamente","count":2}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL+"/donaciones/import", func(cfg *config.CollectorSettings) {
		cfg.CSRFToken = "token-123"
		cfg.Cookies = map[string]string{"laravel_session": "abc"}
	})

	receipt, err := c.Submit(context.Background(), "req-1", sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Count)
	assert.Equal(t, "Se importaron 2 donaciones correctamente", receipt.Message)

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Equal(t, "token-123", gotHeaders.Get("X-CSRF-TOKEN"))
	assert.Equal(t, "XMLHttpRequest", gotHeaders.Get("X-Requested-With"))
	assert.Equal(t, "req-1", gotHeaders.Get("X-Request-Id"))
	assert.Equal(t, "abc", gotCookie)

	require.Len(t, gotBody["donations"], 2)
	first := gotBody["donations"][0]
	assert.Equal(t, float64(50000), first["amount"])
	assert.Equal(t, "2024-03-15", first["created_at"])
	assert.Equal(t, "Juan", first["donor_name"])
	assert.NotContains(t, first, "description")

	second := gotBody["donations"][1]
	assert.Equal(t, 12.5, second["amount"])
	assert.Equal(t, "Alimento", second["description"])
	assert.NotContains(t, second, "donor_name")
}

func TestSubmitCustomPayloadKey(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, func(cfg *config.CollectorSettings) { cfg.PayloadKey = "items" })
	receipt, err := c.Submit(context.Background(), "", sampleBatch())
	require.NoError(t, err)
	assert.Contains(t, body, "items")
	// Count falls back to the batch size.
	assert.Equal(t, 2, receipt.Count)
}

func TestSubmitFailureResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		details bool
	}{
		{"error field", http.StatusForbidden, `{"error":"No tienes permisos para importar donaciones"}`, "No tienes permisos para importar donaciones", false},
		{"validation details", http.StatusUnprocessableEntity, `{"error":"Datos inválidos","details":{"donations.0.amount":["too small"]}}`, "Datos inválidos", true},
		{"no error field", http.StatusInternalServerError, `{}`, fallbackMessage, false},
		{"html error page", http.StatusBadGateway, `<html>oops</html>`, fallbackMessage, false},
		{"unreadable success", http.StatusOK, `<html>login</html>`, "the donations service sent an unreadable answer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL, nil).Submit(context.Background(), "id", sampleBatch())
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeSubmission, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.message, appErr.Message)
			if tt.details {
				assert.Contains(t, appErr.Details, "donations.0.amount")
			}
		})
	}
}

func TestSubmitNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url, nil).Submit(context.Background(), "id", sampleBatch())
	assert.True(t, apperrors.Is(err, apperrors.CodeNetwork))

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = newClient(t, slow.URL, nil).Submit(ctx, "id", sampleBatch())
	assert.True(t, apperrors.Is(err, apperrors.CodeNetwork))
}

func TestSubmitEmptyBatch(t *testing.T) {
	c := newClient(t, "http://localhost:1", nil)
	_, err := c.Submit(context.Background(), "id", nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeEmptyBatch))
}

func TestWithHTTPClientLeavesCallerClientAlone(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("laravel_session"); err == nil {
			gotCookie = c.Value
		}
		_, _ = io.WriteString(w, `{"message":"ok","count":2}`)
	}))
	defer srv.Close()

	hc := &http.Client{Timeout: time.Second}
	c, err := New(config.CollectorSettings{
		Endpoint: srv.URL,
		Cookies:  map[string]string{"laravel_session": "abc"},
	}, WithHTTPClient(hc))
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "req-1", sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, "abc", gotCookie)
	assert.Nil(t, hc.Jar)
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	_, err := New(config.CollectorSettings{Endpoint: "not a url"})
	assert.Error(t, err)
}
