package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textra-ai/textra/internal/config"
)

func TestClient_Infer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/detect", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":"ai","ai_probability":0.91,"certainty":0.87}`))
	}))
	defer srv.Close()

	c := NewClient(config.MLConfig{BaseURL: srv.URL})
	pred, err := c.Infer(context.Background(), "some long enough text to analyze")
	require.NoError(t, err)
	assert.Equal(t, "ai", pred.Label)
	assert.Equal(t, 0.91, pred.AIProbability)
}

func TestClient_InferUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(config.MLConfig{BaseURL: srv.URL})
	_, err := c.Infer(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.MLConfig{BaseURL: srv.URL})
	for i := 0; i < 5; i++ {
		_, err := c.Infer(context.Background(), "text")
		require.Error(t, err)
	}

	// Breaker is now open; the request never reaches the server.
	srv.Close()
	_, err := c.Infer(context.Background(), "text")
	require.Error(t, err)
}
