package runner

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeRequest_SizeLimit(t *testing.T) {
	limit := DefaultMaxRequestSize

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeRequest(strings.Repeat("a", tt.size))
			if tt.wantErr != (err != nil) {
				t.Errorf("SanitizeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeRequest_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxRequestSize, "10")

	_, err := SanitizeRequest(strings.Repeat("a", 11))
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Fatalf("Expected ErrRequestTooLarge, got %v", err)
	}
}

func TestSanitizeRequest_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Mean of sales?", "Mean of sales?"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Surrounding Space", "  padded \n", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeRequest(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("SanitizeRequest() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeRequest_Rejects(t *testing.T) {
	if _, err := SanitizeRequest("bad \xff"); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("Expected ErrInvalidUTF8, got %v", err)
	}
	if _, err := SanitizeRequest("\x07\x00"); !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest, got %v", err)
	}
}
