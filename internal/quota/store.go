package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists user_quotas rows.
type Store interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, dailyLimit, monthlyLimit int64) (*UserQuota, error)
	SaveUsage(ctx context.Context, q *UserQuota) error
	UpdateLimits(ctx context.Context, userID uuid.UUID, dailyLimit, monthlyLimit *int64, isPremium *bool) (*UserQuota, error)
}

const quotaColumns = `user_id, daily_limit, daily_used, daily_reset_at,
	        monthly_limit, monthly_used, monthly_reset_at,
	        total_requests, is_premium, updated_at`

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetOrCreate returns the user's quota row, creating one with the given
// default limits if it doesn't exist. Reset deadlines on a fresh row start
// one day / 30 days ahead.
func (s *PostgresStore) GetOrCreate(ctx context.Context, userID uuid.UUID, dailyLimit, monthlyLimit int64) (*UserQuota, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_quotas (user_id, daily_limit, monthly_limit, daily_reset_at, monthly_reset_at)
		 VALUES ($1, $2, $3, NOW() + INTERVAL '1 day', NOW() + INTERVAL '30 days')
		 ON CONFLICT (user_id) DO NOTHING`, userID, dailyLimit, monthlyLimit)
	if err != nil {
		return nil, fmt.Errorf("ensuring user quota: %w", err)
	}

	var q UserQuota
	err = s.pool.QueryRow(ctx,
		`SELECT `+quotaColumns+` FROM user_quotas WHERE user_id = $1`, userID,
	).Scan(&q.UserID, &q.DailyLimit, &q.DailyUsed, &q.DailyResetAt,
		&q.MonthlyLimit, &q.MonthlyUsed, &q.MonthlyResetAt,
		&q.TotalRequests, &q.IsPremium, &q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetching user quota: %w", err)
	}
	return &q, nil
}

// SaveUsage writes back the mutable usage fields after a reset or increment.
// Limits and the premium flag are only changed through UpdateLimits.
func (s *PostgresStore) SaveUsage(ctx context.Context, q *UserQuota) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_quotas
		 SET daily_used = $2,
		     daily_reset_at = $3,
		     monthly_used = $4,
		     monthly_reset_at = $5,
		     total_requests = $6,
		     updated_at = NOW()
		 WHERE user_id = $1`,
		q.UserID, q.DailyUsed, q.DailyResetAt, q.MonthlyUsed, q.MonthlyResetAt, q.TotalRequests)
	if err != nil {
		return fmt.Errorf("saving quota usage: %w", err)
	}
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateLimits applies a partial administrative override. Nil fields keep
// their current value.
func (s *PostgresStore) UpdateLimits(ctx context.Context, userID uuid.UUID, dailyLimit, monthlyLimit *int64, isPremium *bool) (*UserQuota, error) {
	var q UserQuota
	err := s.pool.QueryRow(ctx,
		`UPDATE user_quotas
		 SET daily_limit = COALESCE($2, daily_limit),
		     monthly_limit = COALESCE($3, monthly_limit),
		     is_premium = COALESCE($4, is_premium),
		     updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING `+quotaColumns,
		userID, dailyLimit, monthlyLimit, isPremium,
	).Scan(&q.UserID, &q.DailyLimit, &q.DailyUsed, &q.DailyResetAt,
		&q.MonthlyLimit, &q.MonthlyUsed, &q.MonthlyResetAt,
		&q.TotalRequests, &q.IsPremium, &q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating quota limits: %w", err)
	}
	return &q, nil
}
