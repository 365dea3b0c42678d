package detection

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/textra-ai/textra/internal/quota"
)

// Result classifies analyzed text.
type Result string

const (
	ResultAIGenerated  Result = "ai_generated"
	ResultHumanWritten Result = "human_written"
	ResultUncertain    Result = "uncertain"
)

// Source names where the analyzed text came from.
type Source string

const (
	SourceText Source = "text"
	SourceFile Source = "file"
	SourceURL  Source = "url"
)

const (
	// MinTextLength applies to trimmed input and to extracted text alike.
	MinTextLength = 50

	historyPreviewLength  = 500
	responsePreviewLength = 200
)

// Record matches the detection_history table schema. Append-only.
type Record struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Source           Source    `json:"source"`
	FileName         *string   `json:"file_name,omitempty"`
	Result           Result    `json:"result"`
	Confidence       float64   `json:"confidence"`
	TextPreview      string    `json:"text_preview"`
	TextLength       int       `json:"text_length"`
	WordCount        int       `json:"word_count"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Detection is the result DTO returned to transports. Its preview is
// shorter than the one kept in history.
type Detection struct {
	ID               uuid.UUID      `json:"id"`
	Source           Source         `json:"source"`
	Result           Result         `json:"result"`
	Confidence       float64        `json:"confidence"`
	TextPreview      string         `json:"text_preview"`
	TextLength       int            `json:"text_length"`
	WordCount        int            `json:"word_count"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Title            string         `json:"title,omitempty"`
	Quota            quota.Snapshot `json:"quota"`
}

// Stats aggregates a user's detection history.
type Stats struct {
	TotalDetections int64   `json:"total_detections"`
	AIGenerated     int64   `json:"ai_generated"`
	HumanWritten    int64   `json:"human_written"`
	Uncertain       int64   `json:"uncertain"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// ValidationError marks rejected input: too short, wrong file type,
// oversized, malformed URL, or no readable text after extraction.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamError marks an extraction or inference collaborator failure,
// distinct from bad input so callers may retry.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
