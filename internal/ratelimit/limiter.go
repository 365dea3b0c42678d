// Package ratelimit implements fixed-window request throttling on Redis.
// Counters live in per-bucket keys that expire on their own, so no sweeper
// is needed. A burst that straddles a bucket boundary can briefly exceed
// the nominal rate; that overshoot is accepted.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "ratelimit"

// Limiter enforces per-user minute and hour windows. When Redis is
// unreachable it fails open: traffic is allowed and the condition logged.
type Limiter struct {
	rdb       redis.Cmdable
	perMinute int64
	perHour   int64
	enabled   bool

	now func() time.Time
}

// New creates a Limiter with the given window limits.
func New(rdb redis.Cmdable, perMinute, perHour int64, enabled bool) *Limiter {
	return &Limiter{
		rdb:       rdb,
		perMinute: perMinute,
		perHour:   perHour,
		enabled:   enabled,
		now:       time.Now,
	}
}

func (l *Limiter) limitFor(p Period) int64 {
	if p == PeriodHour {
		return l.perHour
	}
	return l.perMinute
}

func (l *Limiter) key(userID uuid.UUID, p Period, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyNamespace, userID, p, p.Bucket(t))
}

// Check reads the current bucket counter without modifying it. ResetAt is
// always computed from the clock (start of the next bucket), so it is
// accurate even when no request has touched the bucket yet.
func (l *Limiter) Check(ctx context.Context, userID uuid.UUID, p Period) (bool, Info, error) {
	now := l.now()
	limit := l.limitFor(p)

	count, err := l.rdb.Get(ctx, l.key(userID, p, now)).Int64()
	if err != nil && err != redis.Nil {
		return false, Info{}, fmt.Errorf("reading %s bucket: %w", p, err)
	}

	info := Info{
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   p.WindowStart(now).Add(p.Duration()),
		Period:    p,
	}
	return count < limit, info, nil
}

// Increment bumps the current bucket counter, setting the TTL to the period
// length when this increment created the key.
func (l *Limiter) Increment(ctx context.Context, userID uuid.UUID, p Period) (int64, error) {
	key := l.key(userID, p, l.now())

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing %s bucket: %w", p, err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, p.Duration()).Err(); err != nil {
			return count, fmt.Errorf("setting %s bucket TTL: %w", p, err)
		}
	}
	return count, nil
}

// Status reports both windows without consuming a request. Fails open.
func (l *Limiter) Status(ctx context.Context, userID uuid.UUID) Status {
	if !l.enabled {
		return l.permissiveStatus()
	}

	minuteOK, minuteInfo, err := l.Check(ctx, userID, PeriodMinute)
	if err != nil {
		slog.Warn("rate limiter unavailable, failing open", "user_id", userID, "error", err)
		return l.permissiveStatus()
	}
	hourOK, hourInfo, err := l.Check(ctx, userID, PeriodHour)
	if err != nil {
		slog.Warn("rate limiter unavailable, failing open", "user_id", userID, "error", err)
		return l.permissiveStatus()
	}

	return Status{Allowed: minuteOK && hourOK, Minute: minuteInfo, Hour: hourInfo}
}

// CheckAndIncrement gates one request. Rejection leaves the counters
// untouched and returns an *ExceededError naming the exhausted window,
// minute taking precedence. On success both windows are incremented and
// the returned status carries post-increment counts.
func (l *Limiter) CheckAndIncrement(ctx context.Context, userID uuid.UUID) (Status, error) {
	if !l.enabled {
		return l.permissiveStatus(), nil
	}

	minuteOK, minuteInfo, err := l.Check(ctx, userID, PeriodMinute)
	if err != nil {
		slog.Warn("rate limiter unavailable, failing open", "user_id", userID, "error", err)
		return l.permissiveStatus(), nil
	}
	hourOK, hourInfo, err := l.Check(ctx, userID, PeriodHour)
	if err != nil {
		slog.Warn("rate limiter unavailable, failing open", "user_id", userID, "error", err)
		return l.permissiveStatus(), nil
	}

	status := Status{Allowed: minuteOK && hourOK, Minute: minuteInfo, Hour: hourInfo}
	if !minuteOK {
		return status, &ExceededError{
			Period:     PeriodMinute,
			RetryAfter: l.retryAfter(minuteInfo.ResetAt),
			Info:       minuteInfo,
		}
	}
	if !hourOK {
		return status, &ExceededError{
			Period:     PeriodHour,
			RetryAfter: l.retryAfter(hourInfo.ResetAt),
			Info:       hourInfo,
		}
	}

	minuteCount, err := l.Increment(ctx, userID, PeriodMinute)
	if err != nil {
		slog.Warn("rate limiter increment failed, failing open", "user_id", userID, "period", PeriodMinute, "error", err)
		return l.permissiveStatus(), nil
	}
	hourCount, err := l.Increment(ctx, userID, PeriodHour)
	if err != nil {
		slog.Warn("rate limiter increment failed, failing open", "user_id", userID, "period", PeriodHour, "error", err)
		return l.permissiveStatus(), nil
	}

	// Remaining comes from the counters INCR returned, so writes landing
	// between the pre-check read and the increment are reflected.
	status.Minute.Remaining = max(0, l.perMinute-minuteCount)
	status.Hour.Remaining = max(0, l.perHour-hourCount)
	status.Allowed = true
	return status, nil
}

// Reset clears the current minute, hour and day buckets for the user.
// Administrative use only.
func (l *Limiter) Reset(ctx context.Context, userID uuid.UUID) error {
	now := l.now()
	keys := []string{
		l.key(userID, PeriodMinute, now),
		l.key(userID, PeriodHour, now),
		l.key(userID, PeriodDay, now),
	}
	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("resetting rate limit buckets: %w", err)
	}
	return nil
}

func (l *Limiter) retryAfter(resetAt time.Time) int64 {
	return max(1, int64(resetAt.Sub(l.now()).Seconds()))
}

func (l *Limiter) permissiveStatus() Status {
	now := l.now()
	return Status{
		Allowed: true,
		Minute: Info{
			Limit:     l.perMinute,
			Remaining: l.perMinute,
			ResetAt:   PeriodMinute.WindowStart(now).Add(time.Minute),
			Period:    PeriodMinute,
		},
		Hour: Info{
			Limit:     l.perHour,
			Remaining: l.perHour,
			ResetAt:   PeriodHour.WindowStart(now).Add(time.Hour),
			Period:    PeriodHour,
		},
	}
}
