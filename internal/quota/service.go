package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/textra-ai/textra/internal/config"
)

// Service owns all UserQuota mutation: lazy creation, lazy window resets,
// usage increments and administrative overrides.
type Service struct {
	store Store
	cfg   config.QuotaConfig

	now func() time.Time
}

func NewService(store Store, cfg config.QuotaConfig) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// GetOrCreate fetches the user's quota, creating it with default limits on
// first use, and applies any elapsed resets before returning.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*UserQuota, error) {
	q, err := s.store.GetOrCreate(ctx, userID, s.cfg.DailyDefault, s.cfg.MonthlyDefault)
	if err != nil {
		return nil, err
	}
	return s.ApplyResets(ctx, q)
}

// ApplyResets zeroes elapsed windows. A fired reset jumps the deadline to
// exactly one period from now rather than advancing the stale deadline, so
// a long-idle user gets a single reset instead of a compounded series.
// State is persisted only when at least one window fired.
func (s *Service) ApplyResets(ctx context.Context, q *UserQuota) (*UserQuota, error) {
	now := s.now().UTC()
	fired := false

	if !now.Before(q.DailyResetAt) {
		q.DailyUsed = 0
		q.DailyResetAt = now.Add(24 * time.Hour)
		fired = true
	}
	if !now.Before(q.MonthlyResetAt) {
		q.MonthlyUsed = 0
		q.MonthlyResetAt = now.Add(30 * 24 * time.Hour)
		fired = true
	}

	if fired {
		if err := s.store.SaveUsage(ctx, q); err != nil {
			return nil, fmt.Errorf("persisting quota reset: %w", err)
		}
		slog.Debug("quota windows reset", "user_id", q.UserID,
			"daily_reset_at", q.DailyResetAt, "monthly_reset_at", q.MonthlyResetAt)
	}
	return q, nil
}

// CanRequest reports whether the user may make a detection request, along
// with the refreshed quota.
func (s *Service) CanRequest(ctx context.Context, userID uuid.UUID) (bool, *UserQuota, error) {
	q, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return q.CanRequest(), q, nil
}

// Check is the gate in front of every detection: it returns the refreshed
// quota, or an *ExceededError naming the exhausted window.
func (s *Service) Check(ctx context.Context, userID uuid.UUID) (*UserQuota, error) {
	allowed, q, err := s.CanRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		window := WindowDaily
		if q.DailyUsed < q.DailyLimit {
			window = WindowMonthly
		}
		return q, &ExceededError{Window: window, Quota: q}
	}
	return q, nil
}

// Increment records one consumed request. Call only after a successful
// detection; there is no decrement.
func (s *Service) Increment(ctx context.Context, userID uuid.UUID) (*UserQuota, error) {
	q, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	q.DailyUsed++
	q.MonthlyUsed++
	q.TotalRequests++

	if err := s.store.SaveUsage(ctx, q); err != nil {
		return nil, fmt.Errorf("persisting quota increment: %w", err)
	}
	return q, nil
}

// UpdateLimits applies an administrative override. Only non-nil fields
// change.
func (s *Service) UpdateLimits(ctx context.Context, userID uuid.UUID, dailyLimit, monthlyLimit *int64, isPremium *bool) (*UserQuota, error) {
	// Ensure the row exists so an override can precede first use.
	if _, err := s.store.GetOrCreate(ctx, userID, s.cfg.DailyDefault, s.cfg.MonthlyDefault); err != nil {
		return nil, err
	}
	return s.store.UpdateLimits(ctx, userID, dailyLimit, monthlyLimit, isPremium)
}
