// Package extract obtains plain text from files and URLs through external
// collaborator services.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/textra-ai/textra/internal/config"
)

// ErrNoText means the collaborator answered but found nothing readable.
// Callers treat it as bad input, not as an outage.
var ErrNoText = errors.New("no readable text found")

// Extractor calls the document text-extraction service with raw file bytes.
type Extractor struct {
	baseURL string
	httpc   *http.Client
}

func NewExtractor(cfg config.ExtractorConfig) *Extractor {
	return &Extractor{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Extract uploads the file and returns its plain text.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", &buf)
	if err != nil {
		return "", fmt.Errorf("building extraction request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return "", ErrNoText
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding extraction response: %w", err)
	}

	if strings.TrimSpace(out.Text) == "" {
		return "", ErrNoText
	}
	return out.Text, nil
}
