package quota

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserQuota matches the user_quotas table schema. One row per user,
// created lazily on first check, never deleted.
type UserQuota struct {
	UserID         uuid.UUID `json:"user_id"`
	DailyLimit     int64     `json:"daily_limit"`
	DailyUsed      int64     `json:"daily_used"`
	DailyResetAt   time.Time `json:"daily_reset_at"`
	MonthlyLimit   int64     `json:"monthly_limit"`
	MonthlyUsed    int64     `json:"monthly_used"`
	MonthlyResetAt time.Time `json:"monthly_reset_at"`
	TotalRequests  int64     `json:"total_requests"`
	IsPremium      bool      `json:"is_premium"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (q *UserQuota) DailyRemaining() int64 {
	return max(0, q.DailyLimit-q.DailyUsed)
}

func (q *UserQuota) MonthlyRemaining() int64 {
	return max(0, q.MonthlyLimit-q.MonthlyUsed)
}

// CanRequest reports whether both allowances still have room. Callers must
// apply pending resets first.
func (q *UserQuota) CanRequest() bool {
	return q.DailyUsed < q.DailyLimit && q.MonthlyUsed < q.MonthlyLimit
}

// Snapshot is the API view of a quota row.
type Snapshot struct {
	DailyUsed        int64     `json:"daily_used"`
	DailyLimit       int64     `json:"daily_limit"`
	DailyRemaining   int64     `json:"daily_remaining"`
	DailyResetAt     time.Time `json:"daily_reset_at"`
	MonthlyUsed      int64     `json:"monthly_used"`
	MonthlyLimit     int64     `json:"monthly_limit"`
	MonthlyRemaining int64     `json:"monthly_remaining"`
	MonthlyResetAt   time.Time `json:"monthly_reset_at"`
	TotalRequests    int64     `json:"total_requests"`
	IsPremium        bool      `json:"is_premium"`
	CanMakeRequest   bool      `json:"can_make_request"`
}

func (q *UserQuota) Snapshot() Snapshot {
	return Snapshot{
		DailyUsed:        q.DailyUsed,
		DailyLimit:       q.DailyLimit,
		DailyRemaining:   q.DailyRemaining(),
		DailyResetAt:     q.DailyResetAt,
		MonthlyUsed:      q.MonthlyUsed,
		MonthlyLimit:     q.MonthlyLimit,
		MonthlyRemaining: q.MonthlyRemaining(),
		MonthlyResetAt:   q.MonthlyResetAt,
		TotalRequests:    q.TotalRequests,
		IsPremium:        q.IsPremium,
		CanMakeRequest:   q.CanRequest(),
	}
}

// Window names the allowance that ran out.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowMonthly Window = "monthly"
)

// ExceededError reports an exhausted allowance with current usage figures.
type ExceededError struct {
	Window Window
	Quota  *UserQuota
}

func (e *ExceededError) Error() string {
	if e.Window == WindowMonthly {
		return fmt.Sprintf("monthly quota exceeded: %d/%d requests used", e.Quota.MonthlyUsed, e.Quota.MonthlyLimit)
	}
	return fmt.Sprintf("daily quota exceeded: %d/%d requests used", e.Quota.DailyUsed, e.Quota.DailyLimit)
}
