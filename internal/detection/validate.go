package detection

import (
	"net/url"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/textra-ai/textra/internal/config"
)

// ValidateText trims the input and enforces the minimum length. Length is
// counted in characters, not bytes, so non-ASCII input is measured the same
// way users read it.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n < MinTextLength {
		return "", newValidationError("text must be at least %d characters, got %d", MinTextLength, n)
	}
	return trimmed, nil
}

// ValidateFile checks the extension allow-list and size ceiling before any
// extraction work is spent on the payload.
func ValidateFile(fileName string, size int64, cfg config.DetectionConfig) error {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" || !slices.Contains(cfg.AllowedExtensions, ext) {
		return newValidationError("unsupported file type %q, allowed: %s", ext, strings.Join(cfg.AllowedExtensions, ", "))
	}
	if size > cfg.MaxFileSizeBytes() {
		return newValidationError("file exceeds the %d MB limit", cfg.MaxFileSizeMB)
	}
	if size == 0 {
		return newValidationError("file is empty")
	}
	return nil
}

// ValidateURL accepts only absolute http/https URLs with a host.
func ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", newValidationError("malformed URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", newValidationError("URL scheme must be http or https")
	}
	if u.Host == "" {
		return "", newValidationError("URL must have a host")
	}
	return u.String(), nil
}
