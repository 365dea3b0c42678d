package detection

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/quota"
)

func TestHandleDetectionError_QuotaCarriesSnapshot(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, config.DetectionConfig{})
	rec := httptest.NewRecorder()

	h.handleDetectionError(rec, &quota.ExceededError{
		Window: quota.WindowDaily,
		Quota: &quota.UserQuota{
			DailyUsed: 100, DailyLimit: 100,
			DailyResetAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
			MonthlyUsed:  40, MonthlyLimit: 1000,
		},
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		Error   string         `json:"error"`
		Details quota.Snapshot `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "daily quota exceeded")
	assert.Equal(t, int64(100), body.Details.DailyLimit)
	assert.Equal(t, int64(0), body.Details.DailyRemaining)
	assert.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), body.Details.DailyResetAt)
	assert.Equal(t, int64(960), body.Details.MonthlyRemaining)
	assert.False(t, body.Details.CanMakeRequest)
}

func TestHandleDetectionError_Mapping(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, config.DetectionConfig{})

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &ValidationError{Message: "too short"}, http.StatusBadRequest},
		{"upstream", &UpstreamError{Service: "inference", Err: assert.AnError}, http.StatusBadGateway},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.handleDetectionError(rec, tt.err)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
