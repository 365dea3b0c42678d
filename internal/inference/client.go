// Package inference talks to the external ML microservice that scores text
// as AI-generated or human-written.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/textra-ai/textra/internal/config"
)

// Prediction is the parsed inference response. Label may be empty when the
// upstream omits it; callers resolve the final verdict from AIProbability.
type Prediction struct {
	Label         string
	AIProbability float64
	Certainty     float64
	ModelUsed     string
}

// Client calls the inference service over JSON/HTTP, wrapped in a circuit
// breaker so a dead upstream fails fast instead of tying up request workers.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[Prediction]
}

func NewClient(cfg config.MLConfig) *Client {
	settings := gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[Prediction](settings),
	}
}

// Infer scores the given text.
func (c *Client) Infer(ctx context.Context, text string) (Prediction, error) {
	return c.breaker.Execute(func() (Prediction, error) {
		return c.infer(ctx, text)
	})
}

func (c *Client) infer(ctx context.Context, text string) (Prediction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Prediction{}, fmt.Errorf("encoding inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("calling inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("reading inference response: %w", err)
	}

	pred, err := ParsePrediction(data)
	if err != nil {
		return Prediction{}, fmt.Errorf("parsing inference response: %w", err)
	}
	return pred, nil
}
