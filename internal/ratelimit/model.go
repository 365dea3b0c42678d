package ratelimit

import (
	"fmt"
	"time"
)

// Period is a throttle window granularity.
type Period string

const (
	PeriodMinute Period = "minute"
	PeriodHour   Period = "hour"
	// PeriodDay has no limit of its own; its bucket key only exists so an
	// administrative reset can clear a full day of counters.
	PeriodDay Period = "day"
)

// Duration returns the window length for the period.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodMinute:
		return time.Minute
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	}
	return 0
}

// Bucket returns the coarse UTC timestamp identifying the window t falls in.
func (p Period) Bucket(t time.Time) string {
	t = t.UTC()
	switch p {
	case PeriodMinute:
		return t.Format("200601021504")
	case PeriodHour:
		return t.Format("2006010215")
	case PeriodDay:
		return t.Format("20060102")
	}
	return ""
}

// WindowStart truncates t to the start of its bucket.
func (p Period) WindowStart(t time.Time) time.Time {
	return t.UTC().Truncate(p.Duration())
}

// Info describes the state of one throttle window at check time.
// It is derived per check, never persisted.
type Info struct {
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Period    Period    `json:"period"`
}

// Status aggregates the minute and hour windows. Allowed is true only when
// both windows have room.
type Status struct {
	Allowed bool `json:"allowed"`
	Minute  Info `json:"minute"`
	Hour    Info `json:"hour"`
}

// MostRestrictive returns the window with the fewest remaining requests,
// preferring the minute window on a tie.
func (s Status) MostRestrictive() Info {
	if s.Hour.Remaining < s.Minute.Remaining {
		return s.Hour
	}
	return s.Minute
}

// ExceededError reports an exhausted throttle window.
type ExceededError struct {
	Period     Period
	RetryAfter int64 // seconds, always >= 1
	Info       Info
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for period %s, retry after %ds", e.Period, e.RetryAfter)
}
