//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRateLimit(t *testing.T) {
	env := SetupTestEnv(t)
	userID, token := NewUser(t, env, "throttle@example.com")
	adminToken := AdminToken(t, env)
	env.SetMLResponse(map[string]any{"label": "ai", "ai_probability": 0.9, "certainty": 0.9})

	detect := func() *http.Response {
		return DoRequest(t, env, "POST", "/api/v1/detect/text", map[string]string{"text": LongText}, token)
	}

	t.Run("headers expose the remaining budget", func(t *testing.T) {
		resp := detect()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		assert.Equal(t, strconv.Itoa(TestPerMinute), resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(TestPerMinute-1), resp.Header.Get("X-RateLimit-Remaining"))
		assert.Equal(t, "minute", resp.Header.Get("X-RateLimit-Period"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	})

	t.Run("throttle trips after the minute budget", func(t *testing.T) {
		// One request already spent by the headers subtest.
		for i := 1; i < TestPerMinute; i++ {
			resp := detect()
			require.Equal(t, http.StatusOK, resp.StatusCode, "request %d within the window", i+1)
			resp.Body.Close()
		}

		resp := detect()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, retryAfter, 1)
		assert.LessOrEqual(t, retryAfter, 60)
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

		result := ParseResponse(t, resp)
		assert.Contains(t, result["error"], "rate limit exceeded")
	})

	t.Run("rejections do not touch the durable quota", func(t *testing.T) {
		assert.Equal(t, float64(TestPerMinute), usedQuota(t, env, token),
			"only the allowed requests consume quota")
	})

	t.Run("admin reset clears the window", func(t *testing.T) {
		resp := DoRequest(t, env, "POST", fmt.Sprintf("/api/v1/admin/users/%s/ratelimit/reset", userID), nil, adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = detect()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	env := SetupTestEnv(t)
	_, token := NewUser(t, env, "throttle-status@example.com")
	env.SetMLResponse(map[string]any{"label": "ai", "ai_probability": 0.9, "certainty": 0.9})

	resp := DoRequest(t, env, "POST", "/api/v1/detect/text", map[string]string{"text": LongText}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/user/limits", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	rl := data["rate_limit"].(map[string]any)
	assert.Equal(t, true, rl["allowed"])

	minute := rl["minute"].(map[string]any)
	assert.Equal(t, float64(TestPerMinute), minute["limit"])
	assert.Equal(t, float64(TestPerMinute-1), minute["remaining"])

	hour := rl["hour"].(map[string]any)
	assert.Equal(t, float64(TestPerHour), hour["limit"])
	assert.Equal(t, float64(TestPerHour-1), hour["remaining"])
}
