package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/textra-ai/textra/internal/config"
)

// Article is the cleaned content of a fetched web page.
type Article struct {
	Text  string
	Title string
}

// Reader fetches a URL through a reader service that renders the page to
// Markdown, then cleans it down to plain text.
type Reader struct {
	baseURL string
	httpc   *http.Client
}

func NewReader(cfg config.ReaderConfig) *Reader {
	return &Reader{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch returns the readable text of the page at targetURL.
func (r *Reader) Fetch(ctx context.Context, targetURL string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+targetURL, nil)
	if err != nil {
		return Article{}, fmt.Errorf("building reader request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("calling reader service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("reader service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Article{}, fmt.Errorf("reading reader response: %w", err)
	}

	markdown := string(raw)
	text, err := CleanMarkdown(markdown)
	if err != nil {
		return Article{}, err
	}
	return Article{Text: text, Title: Title(markdown)}, nil
}
