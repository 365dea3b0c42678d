package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Throttle windows and quotas must stay positive
	if c.RateLimit.PerMinute < 1 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute))
	}
	if c.RateLimit.PerHour < 1 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_PER_HOUR must be positive, got %d", c.RateLimit.PerHour))
	}
	if c.RateLimit.AuthRequests < 1 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_AUTH_REQUESTS must be positive, got %d", c.RateLimit.AuthRequests))
	}
	if c.RateLimit.AuthWindowSec < 1 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_AUTH_WINDOW_SEC must be positive, got %d", c.RateLimit.AuthWindowSec))
	}
	if c.Quota.DailyDefault < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_DAILY_DEFAULT must be positive, got %d", c.Quota.DailyDefault))
	}
	if c.Quota.MonthlyDefault < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_MONTHLY_DEFAULT must be positive, got %d", c.Quota.MonthlyDefault))
	}
	if c.Detection.MaxFileSizeMB < 1 {
		errs = append(errs, fmt.Sprintf("DETECTION_MAX_FILE_SIZE_MB must be positive, got %d", c.Detection.MaxFileSizeMB))
	}

	if !c.RateLimit.Enabled {
		slog.Warn("RATE_LIMIT_ENABLED is false, per-user throttling is off")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
