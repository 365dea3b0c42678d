package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textra-ai/textra/internal/detection"
	inats "github.com/textra-ai/textra/internal/nats"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
	"github.com/textra-ai/textra/internal/users"
)

type fakeUsers struct {
	user *users.User
	err  error
	jids []string
}

func (f *fakeUsers) GetOrCreateByJID(_ context.Context, jid string) (*users.User, error) {
	f.jids = append(f.jids, jid)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeThrottle struct {
	err   error
	calls int
}

func (f *fakeThrottle) CheckAndIncrement(context.Context, uuid.UUID) (ratelimit.Status, error) {
	f.calls++
	if f.err != nil {
		return ratelimit.Status{}, f.err
	}
	return ratelimit.Status{Allowed: true}, nil
}

type fakeDetector struct {
	det    *detection.Detection
	err    error
	textIn []string
	urlIn  []string
}

func (f *fakeDetector) DetectText(_ context.Context, _ uuid.UUID, text string) (*detection.Detection, error) {
	f.textIn = append(f.textIn, text)
	return f.det, f.err
}

func (f *fakeDetector) DetectURL(_ context.Context, _ uuid.UUID, rawURL string) (*detection.Detection, error) {
	f.urlIn = append(f.urlIn, rawURL)
	return f.det, f.err
}

type fixture struct {
	bot      *Bot
	users    *fakeUsers
	throttle *fakeThrottle
	detector *fakeDetector
}

func newFixture() *fixture {
	userID := uuid.New()
	f := &fixture{
		users:    &fakeUsers{user: &users.User{ID: userID, Email: "xmpp-user@bot.invalid"}},
		throttle: &fakeThrottle{},
		detector: &fakeDetector{
			det: &detection.Detection{
				ID:               uuid.New(),
				Source:           detection.SourceText,
				Result:           detection.ResultAIGenerated,
				Confidence:       0.92,
				WordCount:        120,
				ProcessingTimeMS: 87,
				Quota:            quota.Snapshot{DailyRemaining: 42, MonthlyRemaining: 900},
			},
		},
	}
	f.bot = New(nil, nil, f.users, f.throttle, f.detector)
	return f
}

func inboundMsg(body string) inats.InboundMessage {
	return inats.InboundMessage{
		ID:      uuid.New().String(),
		FromJID: "alice@textra.local/mobile",
		ToJID:   "detector@bot.textra.local",
		Body:    body,
	}
}

func TestRespond_TextDetection(t *testing.T) {
	f := newFixture()

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("Some long enough passage of text to analyze for authorship."))

	assert.Equal(t, "ok", outcome)
	assert.Contains(t, reply, "likely AI-generated")
	assert.Contains(t, reply, "92% confidence")
	assert.Contains(t, reply, "42 today")

	require.NotNil(t, event)
	assert.Equal(t, f.users.user.ID, event.UserID)
	assert.Equal(t, "alice@textra.local", event.FromJID)
	assert.Equal(t, "ai_generated", event.Result)

	require.Len(t, f.users.jids, 1)
	assert.Equal(t, "alice@textra.local", f.users.jids[0], "resource must be stripped before user lookup")
	assert.Len(t, f.detector.textIn, 1)
	assert.Empty(t, f.detector.urlIn)
}

func TestRespond_LinkGoesToURLDetection(t *testing.T) {
	f := newFixture()
	f.detector.det.Source = detection.SourceURL

	_, _, outcome := f.bot.respond(context.Background(), inboundMsg("https://example.com/article"))

	assert.Equal(t, "ok", outcome)
	assert.Len(t, f.detector.urlIn, 1)
	assert.Empty(t, f.detector.textIn)
}

func TestRespond_LeadingLinkUsesFirstToken(t *testing.T) {
	f := newFixture()
	f.detector.det.Source = detection.SourceURL

	_, _, outcome := f.bot.respond(context.Background(), inboundMsg("https://example.com/post is this written by a bot?"))

	assert.Equal(t, "ok", outcome)
	require.Len(t, f.detector.urlIn, 1)
	assert.Equal(t, "https://example.com/post", f.detector.urlIn[0])
	assert.Empty(t, f.detector.textIn)
}

func TestRespond_LinkInsideSentenceIsTreatedAsText(t *testing.T) {
	f := newFixture()

	_, _, outcome := f.bot.respond(context.Background(), inboundMsg("check this out https://example.com and tell me what you think about the writing style"))

	assert.Equal(t, "ok", outcome)
	assert.Empty(t, f.detector.urlIn)
	assert.Len(t, f.detector.textIn, 1)
}

func TestRespond_HelpSkipsPipeline(t *testing.T) {
	f := newFixture()

	for _, body := range []string{"help", "/help", "HELP", "", "  "} {
		reply, event, outcome := f.bot.respond(context.Background(), inboundMsg(body))
		assert.Equal(t, "help", outcome, "body %q", body)
		assert.Contains(t, reply, "http://")
		assert.Nil(t, event)
	}
	assert.Empty(t, f.users.jids)
	assert.Zero(t, f.throttle.calls)
}

func TestRespond_RateLimited(t *testing.T) {
	f := newFixture()
	f.throttle.err = &ratelimit.ExceededError{Period: ratelimit.PeriodMinute, RetryAfter: 37}

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("some text to check that is clearly long enough for the gate"))

	assert.Equal(t, "rate_limited", outcome)
	assert.Contains(t, reply, "37 seconds")
	assert.Nil(t, event)
	assert.Empty(t, f.detector.textIn, "throttled messages must not reach detection")
}

func TestRespond_QuotaExceeded(t *testing.T) {
	f := newFixture()
	f.detector.det = nil
	f.detector.err = &quota.ExceededError{
		Window: quota.WindowDaily,
		Quota: &quota.UserQuota{
			DailyUsed: 100, DailyLimit: 100,
			DailyResetAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		},
	}

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("another sufficiently long passage of text for the daily gate"))

	assert.Equal(t, "quota_exceeded", outcome)
	assert.Contains(t, reply, "daily quota")
	assert.Contains(t, reply, "100/100")
	assert.Contains(t, reply, "Mar 15 10:00 UTC")
	assert.Nil(t, event)
}

func TestRespond_ShortTextRejected(t *testing.T) {
	f := newFixture()
	f.detector.det = nil
	f.detector.err = &detection.ValidationError{Message: "text must be at least 50 characters"}

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("too short"))

	assert.Equal(t, "invalid", outcome)
	assert.Contains(t, reply, "at least 50 characters")
	assert.Nil(t, event)
}

func TestRespond_UpstreamOutage(t *testing.T) {
	f := newFixture()
	f.detector.det = nil
	f.detector.err = &detection.UpstreamError{Service: "inference", Err: errors.New("connection refused")}

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("a passage that is long enough but the model service is down"))

	assert.Equal(t, "upstream_error", outcome)
	assert.Contains(t, reply, "temporarily unavailable")
	assert.NotContains(t, reply, "connection refused", "internal errors stay out of chat replies")
	assert.Nil(t, event)
}

func TestRespond_UserResolveFailure(t *testing.T) {
	f := newFixture()
	f.users.err = errors.New("db down")

	reply, event, outcome := f.bot.respond(context.Background(), inboundMsg("a passage that is long enough to pass validation easily here"))

	assert.Equal(t, "error", outcome)
	assert.Contains(t, reply, "went wrong")
	assert.Nil(t, event)
	assert.Zero(t, f.throttle.calls)
}

func TestIsURLRequest(t *testing.T) {
	assert.True(t, isURLRequest("https://example.com/a"))
	assert.True(t, isURLRequest("http://example.com"))
	assert.True(t, isURLRequest("https://example.com with trailing words"))
	assert.False(t, isURLRequest("ftp://example.com"))
	assert.False(t, isURLRequest("plain text"))
	assert.False(t, isURLRequest("see https://example.com for details"))
}

func TestHelpTextMentionsMinimumLength(t *testing.T) {
	assert.True(t, strings.Contains(helpText, "50 characters"))
}
