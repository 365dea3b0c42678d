package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/quota"
)

func TestConfidenceBar(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0, "[----------]"},
		{0.04, "[----------]"},
		{0.05, "[#---------]"},
		{0.5, "[#####-----]"},
		{0.92, "[#########-]"},
		{1, "[##########]"},
		{1.3, "[##########]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceBar(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestFormatDetection_IncludesTitleForPages(t *testing.T) {
	det := &detection.Detection{
		Source:           detection.SourceURL,
		Result:           detection.ResultHumanWritten,
		Confidence:       0.3,
		WordCount:        850,
		ProcessingTimeMS: 412,
		Title:            "On Writing Well",
		Quota:            quota.Snapshot{DailyRemaining: 7, MonthlyRemaining: 120},
	}

	reply := formatDetection(det)

	assert.Contains(t, reply, "likely human-written")
	assert.Contains(t, reply, "30% confidence")
	assert.Contains(t, reply, "Page: On Writing Well")
	assert.Contains(t, reply, "850")
	assert.Contains(t, reply, "412ms")
	assert.Contains(t, reply, "7 today, 120 this month")
}

func TestFormatDetection_OmitsTitleForPlainText(t *testing.T) {
	det := &detection.Detection{
		Source:     detection.SourceText,
		Result:     detection.ResultUncertain,
		Confidence: 0.55,
	}

	reply := formatDetection(det)

	assert.Contains(t, reply, "uncertain")
	assert.NotContains(t, reply, "Page:")
}
