package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxRequestSize is 8KB.
	DefaultMaxRequestSize = 8192
	// EnvMaxRequestSize is the environment variable to override the default.
	EnvMaxRequestSize = "TABULA_MAX_REQUEST_SIZE"
)

var (
	ErrRequestTooLarge = errors.New("request exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("request contains invalid UTF-8 sequences")
	ErrEmptyRequest    = errors.New("request is empty")
)

// SanitizeRequest cleans the free-text request by enforcing size limits, validating
// UTF-8 and stripping control characters other than newline, tab and carriage return.
// Oversized requests are rejected, never truncated.
func SanitizeRequest(request string) (string, error) {
	limit := maxRequestSize()
	if len(request) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrRequestTooLarge, len(request), limit)
	}
	if !utf8.ValidString(request) {
		return "", ErrInvalidUTF8
	}

	clean := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !isSafeControl(r) {
			return -1
		}
		return r
	}, request))
	if clean == "" {
		return "", ErrEmptyRequest
	}
	return clean, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxRequestSize() int {
	if val := os.Getenv(EnvMaxRequestSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxRequestSize
}
