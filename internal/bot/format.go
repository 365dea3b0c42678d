package bot

import (
	"fmt"
	"strings"

	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
)

const helpText = `I check whether text was written by a human or an AI.

Send me:
  - a passage of text (at least 50 characters), or
  - a link starting with http:// or https://

I reply with a verdict, a confidence score, and how many checks you
have left today. Send "help" to see this message again.`

const (
	errorReply  = "Something went wrong on my end. Please try again in a moment."
	outageReply = "The analysis service is temporarily unavailable. Please try again shortly."
)

const barSegments = 10

// formatDetection renders one detection verdict as a chat reply.
func formatDetection(det *detection.Detection) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%.0f%% confidence)\n", verdictLine(det.Result), det.Confidence*100)
	fmt.Fprintf(&b, "%s\n", confidenceBar(det.Confidence))
	if det.Title != "" {
		fmt.Fprintf(&b, "Page: %s\n", det.Title)
	}
	fmt.Fprintf(&b, "Words analyzed: %d, took %dms\n", det.WordCount, det.ProcessingTimeMS)
	fmt.Fprintf(&b, "Checks left: %d today, %d this month",
		det.Quota.DailyRemaining, det.Quota.MonthlyRemaining)

	return b.String()
}

func verdictLine(result detection.Result) string {
	switch result {
	case detection.ResultAIGenerated:
		return "Verdict: likely AI-generated"
	case detection.ResultHumanWritten:
		return "Verdict: likely human-written"
	default:
		return "Verdict: uncertain"
	}
}

// confidenceBar renders a ten-segment text gauge, e.g. [#######---].
func confidenceBar(confidence float64) string {
	filled := int(confidence*barSegments + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > barSegments {
		filled = barSegments
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barSegments-filled) + "]"
}

func formatInvalid(err *detection.ValidationError) string {
	return fmt.Sprintf("I can't check that: %s. Send \"help\" for usage.", err.Message)
}

func formatQuotaExceeded(err *quota.ExceededError) string {
	used, limit, resetAt := err.Quota.DailyUsed, err.Quota.DailyLimit, err.Quota.DailyResetAt
	if err.Window == quota.WindowMonthly {
		used, limit, resetAt = err.Quota.MonthlyUsed, err.Quota.MonthlyLimit, err.Quota.MonthlyResetAt
	}
	return fmt.Sprintf("You've used up your %s quota (%d/%d checks). It resets at %s.",
		err.Window, used, limit, resetAt.UTC().Format("Jan 2 15:04 UTC"))
}

func formatRateLimited(err *ratelimit.ExceededError) string {
	return fmt.Sprintf("You're sending messages too fast. Try again in %d seconds.", err.RetryAfter)
}
