package detection

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/extract"
	"github.com/textra-ai/textra/internal/inference"
	"github.com/textra-ai/textra/internal/metrics"
	"github.com/textra-ai/textra/internal/quota"
)

// Inferrer scores text. Implemented by inference.Client.
type Inferrer interface {
	Infer(ctx context.Context, text string) (inference.Prediction, error)
}

// FileExtractor turns uploaded file bytes into plain text.
type FileExtractor interface {
	Extract(ctx context.Context, data []byte, fileName string) (string, error)
}

// ArticleFetcher turns a URL into readable article text.
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (extract.Article, error)
}

// HistoryWriter appends completed detections.
type HistoryWriter interface {
	Insert(ctx context.Context, rec *Record) error
}

// Service sequences one detection request: quota gate, validation,
// extraction, inference, usage increment, history write. Rate limiting
// happens in the transport before this service is invoked.
type Service struct {
	quotas    *quota.Service
	history   HistoryWriter
	inferrer  Inferrer
	extractor FileExtractor
	fetcher   ArticleFetcher
	cfg       config.DetectionConfig

	now func() time.Time
}

func NewService(quotas *quota.Service, history HistoryWriter, inferrer Inferrer,
	extractor FileExtractor, fetcher ArticleFetcher, cfg config.DetectionConfig) *Service {
	return &Service{
		quotas:    quotas,
		history:   history,
		inferrer:  inferrer,
		extractor: extractor,
		fetcher:   fetcher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// DetectText analyzes raw text.
func (s *Service) DetectText(ctx context.Context, userID uuid.UUID, text string) (*Detection, error) {
	return s.run(ctx, userID, SourceText, nil, func(context.Context) (string, string, error) {
		trimmed, err := ValidateText(text)
		return trimmed, "", err
	})
}

// DetectFile analyzes an uploaded document. The extension allow-list and
// size ceiling are checked before any bytes go to the extraction service.
func (s *Service) DetectFile(ctx context.Context, userID uuid.UUID, data []byte, fileName string) (*Detection, error) {
	return s.run(ctx, userID, SourceFile, &fileName, func(ctx context.Context) (string, string, error) {
		if err := ValidateFile(fileName, int64(len(data)), s.cfg); err != nil {
			return "", "", err
		}
		text, err := s.extractor.Extract(ctx, data, fileName)
		if err != nil {
			return "", "", classifyExtractionError("extraction", err)
		}
		trimmed, err := ValidateText(text)
		return trimmed, "", err
	})
}

// DetectURL analyzes the readable content of a web page.
func (s *Service) DetectURL(ctx context.Context, userID uuid.UUID, rawURL string) (*Detection, error) {
	return s.run(ctx, userID, SourceURL, nil, func(ctx context.Context) (string, string, error) {
		target, err := ValidateURL(rawURL)
		if err != nil {
			return "", "", err
		}
		article, err := s.fetcher.Fetch(ctx, target)
		if err != nil {
			return "", "", classifyExtractionError("article fetch", err)
		}
		trimmed, err := ValidateText(article.Text)
		return trimmed, article.Title, err
	})
}

// obtainText validates input and produces (text, title). It runs after the
// quota gate so rejected users cost nothing downstream.
type obtainText func(ctx context.Context) (text, title string, err error)

func (s *Service) run(ctx context.Context, userID uuid.UUID, source Source, fileName *string, obtain obtainText) (*Detection, error) {
	start := s.now()

	// 1. Durable quota gate. Short-circuits with usage figures; no
	// retry-after since the reset can be days away.
	q, err := s.quotas.Check(ctx, userID)
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			metrics.QuotaRejectionsTotal.WithLabelValues(string(exceeded.Window)).Inc()
		}
		return nil, err
	}

	// 2. Validation and (for files/URLs) extraction.
	text, title, err := obtain(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Inference.
	pred, err := s.inferrer.Infer(ctx, text)
	if err != nil {
		metrics.InferenceErrorsTotal.Inc()
		return nil, &UpstreamError{Service: "inference", Err: err}
	}
	result := resolveResult(pred)

	// 4. Usage increment, only after successful inference.
	q, err = s.quotas.Increment(ctx, userID)
	if err != nil {
		return nil, err
	}

	processingMS := s.now().Sub(start).Milliseconds()

	// 5. History write. A failure here does not undo the increment.
	rec := &Record{
		ID:               uuid.New(),
		UserID:           userID,
		Source:           source,
		FileName:         fileName,
		Result:           result,
		Confidence:       pred.Certainty,
		TextPreview:      truncate(text, historyPreviewLength),
		TextLength:       utf8.RuneCountInString(text),
		WordCount:        len(strings.Fields(text)),
		ProcessingTimeMS: processingMS,
	}
	if err := s.history.Insert(ctx, rec); err != nil {
		slog.Error("detection history write failed after quota increment",
			"user_id", userID, "source", source, "error", err)
		return nil, err
	}

	metrics.DetectionsTotal.WithLabelValues(string(source), string(result)).Inc()
	metrics.DetectionDuration.WithLabelValues(string(source)).Observe(float64(processingMS) / 1000)

	return &Detection{
		ID:               rec.ID,
		Source:           source,
		Result:           result,
		Confidence:       pred.Certainty,
		TextPreview:      truncate(text, responsePreviewLength),
		TextLength:       rec.TextLength,
		WordCount:        rec.WordCount,
		ProcessingTimeMS: processingMS,
		Title:            title,
		Quota:            q.Snapshot(),
	}, nil
}

// resolveResult maps the upstream label to a Result. Unknown or missing
// labels take the probability-threshold branch instead of failing, so
// upstream contract drift degrades to a coarser verdict rather than an
// outage.
func resolveResult(pred inference.Prediction) Result {
	switch strings.ToLower(pred.Label) {
	case "ai", "ai_generated", "artificial":
		return ResultAIGenerated
	case "human", "human_written":
		return ResultHumanWritten
	case "mixed", "uncertain":
		return ResultUncertain
	}

	if pred.Label != "" {
		slog.Warn("unknown inference label, falling back to probability", "label", pred.Label)
	}
	switch {
	case pred.AIProbability > 0.7:
		return ResultAIGenerated
	case pred.AIProbability < 0.4:
		return ResultHumanWritten
	default:
		return ResultUncertain
	}
}

// classifyExtractionError separates "nothing readable" (bad input) from a
// collaborator outage (retryable).
func classifyExtractionError(service string, err error) error {
	if errors.Is(err, extract.ErrNoText) {
		return newValidationError("no readable text found in the submitted content")
	}
	return &UpstreamError{Service: service, Err: err}
}
