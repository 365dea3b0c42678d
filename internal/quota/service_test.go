package quota

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textra-ai/textra/internal/config"
)

// fakeStore keeps quota rows in memory.
type fakeStore struct {
	rows      map[uuid.UUID]*UserQuota
	saveCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*UserQuota)}
}

func (f *fakeStore) GetOrCreate(_ context.Context, userID uuid.UUID, dailyLimit, monthlyLimit int64) (*UserQuota, error) {
	if q, ok := f.rows[userID]; ok {
		cp := *q
		return &cp, nil
	}
	now := time.Now().UTC()
	q := &UserQuota{
		UserID:         userID,
		DailyLimit:     dailyLimit,
		DailyResetAt:   now.Add(24 * time.Hour),
		MonthlyLimit:   monthlyLimit,
		MonthlyResetAt: now.Add(30 * 24 * time.Hour),
	}
	f.rows[userID] = q
	cp := *q
	return &cp, nil
}

func (f *fakeStore) SaveUsage(_ context.Context, q *UserQuota) error {
	f.saveCalls++
	row := f.rows[q.UserID]
	row.DailyUsed = q.DailyUsed
	row.DailyResetAt = q.DailyResetAt
	row.MonthlyUsed = q.MonthlyUsed
	row.MonthlyResetAt = q.MonthlyResetAt
	row.TotalRequests = q.TotalRequests
	return nil
}

func (f *fakeStore) UpdateLimits(_ context.Context, userID uuid.UUID, dailyLimit, monthlyLimit *int64, isPremium *bool) (*UserQuota, error) {
	row := f.rows[userID]
	if dailyLimit != nil {
		row.DailyLimit = *dailyLimit
	}
	if monthlyLimit != nil {
		row.MonthlyLimit = *monthlyLimit
	}
	if isPremium != nil {
		row.IsPremium = *isPremium
	}
	cp := *row
	return &cp, nil
}

func newTestService(store Store) *Service {
	return NewService(store, config.QuotaConfig{DailyDefault: 100, MonthlyDefault: 1000})
}

func TestGetOrCreate_DefaultsOnFirstUse(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	q, err := svc.GetOrCreate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(100), q.DailyLimit)
	assert.Equal(t, int64(1000), q.MonthlyLimit)
	assert.Equal(t, int64(0), q.DailyUsed)
	assert.True(t, q.DailyResetAt.After(time.Now()))
	assert.True(t, q.CanRequest())
}

func TestApplyResets_ElapsedDailyWindow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	q.DailyUsed = 42
	q.DailyResetAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveUsage(ctx, q))

	q, err = svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.DailyUsed)
	// Deadline jumps one day from now, not from the stale deadline.
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), q.DailyResetAt, time.Minute)
}

func TestApplyResets_LongIdleSingleJump(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	q.DailyUsed = 7
	q.MonthlyUsed = 300
	q.DailyResetAt = time.Now().UTC().Add(-90 * 24 * time.Hour)
	q.MonthlyResetAt = time.Now().UTC().Add(-90 * 24 * time.Hour)
	require.NoError(t, store.SaveUsage(ctx, q))

	q, err = svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.DailyUsed)
	assert.Equal(t, int64(0), q.MonthlyUsed)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), q.DailyResetAt, time.Minute)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), q.MonthlyResetAt, time.Minute)
}

func TestApplyResets_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	q.DailyResetAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SaveUsage(ctx, q))

	saves := store.saveCalls
	_, err = svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, saves+1, store.saveCalls, "first call should persist the reset")

	_, err = svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, saves+1, store.saveCalls, "second call should change nothing")
}

func TestIncrement_BumpsAllCounters(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Increment(ctx, userID)
		require.NoError(t, err)
	}

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.DailyUsed)
	assert.Equal(t, int64(3), q.MonthlyUsed)
	assert.Equal(t, int64(3), q.TotalRequests)
}

func TestCheck_LastRequestThenExceeded(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	q.DailyUsed = 99
	require.NoError(t, store.SaveUsage(ctx, q))

	// 99/100: one request left.
	q, err = svc.Check(ctx, userID)
	require.NoError(t, err)
	assert.True(t, q.CanRequest())

	_, err = svc.Increment(ctx, userID)
	require.NoError(t, err)

	// 100/100: gate closes.
	_, err = svc.Check(ctx, userID)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, WindowDaily, exceeded.Window)
	assert.Equal(t, int64(100), exceeded.Quota.DailyUsed)
	assert.Equal(t, int64(100), exceeded.Quota.DailyLimit)
	assert.Contains(t, exceeded.Error(), "100/100")
}

func TestCheck_MonthlyWindowNamedWhenDailyHasRoom(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	q, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	q.MonthlyUsed = 1000
	require.NoError(t, store.SaveUsage(ctx, q))

	_, err = svc.Check(ctx, userID)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, WindowMonthly, exceeded.Window)
}

func TestUpdateLimits_PartialOverride(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := uuid.New()

	daily := int64(500)
	premium := true
	q, err := svc.UpdateLimits(ctx, userID, &daily, nil, &premium)
	require.NoError(t, err)
	assert.Equal(t, int64(500), q.DailyLimit)
	assert.Equal(t, int64(1000), q.MonthlyLimit, "unset field keeps its value")
	assert.True(t, q.IsPremium)
}

func TestSnapshot_RemainingAndGate(t *testing.T) {
	q := &UserQuota{
		DailyLimit: 100, DailyUsed: 40,
		MonthlyLimit: 1000, MonthlyUsed: 1000,
		TotalRequests: 1200,
	}
	snap := q.Snapshot()
	assert.Equal(t, int64(60), snap.DailyRemaining)
	assert.Equal(t, int64(0), snap.MonthlyRemaining)
	assert.False(t, snap.CanMakeRequest)
}
