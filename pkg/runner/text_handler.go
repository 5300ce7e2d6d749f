package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/tabula/pkg/domain"
)

// TextHandler reports progress as human-readable text.
type TextHandler struct {
	Writer io.Writer

	// Renderer transforms narration and the final answer (e.g. Markdown to ANSI).
	Renderer ContentRenderer

	// Header styles step headers. Identity if nil.
	Header func(string) string

	// ImageDir receives chart images as step-<n>.png. Images are only summarized if empty.
	ImageDir string

	// MaxResultLines truncates long results. Zero shows everything.
	MaxResultLines int
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerHeader configures the step header style.
func WithTextHandlerHeader(style func(string) string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Header = style
	}
}

// WithImageDir writes chart images into dir.
func WithImageDir(dir string) TextHandlerOption {
	return func(h *TextHandler) {
		h.ImageDir = dir
	}
}

// WithMaxResultLines truncates results longer than n lines.
func WithMaxResultLines(n int) TextHandlerOption {
	return func(h *TextHandler) {
		h.MaxResultLines = n
	}
}

// NewTextHandler creates a handler writing to w (Stdout if nil).
func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{Writer: w}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Started(ctx context.Context, s *domain.Session) error {
	_, err := fmt.Fprintf(h.Writer, "%s\nSource: %s\n\n", h.header("Request: "+s.Request), s.Source)
	return err
}

func (h *TextHandler) Stepped(ctx context.Context, s *domain.Session, index int, rec domain.StepRecord) error {
	var b strings.Builder
	fmt.Fprintln(&b, h.header(fmt.Sprintf("[%d] %s", index+1, DescribeCall(rec.Call))))
	if rec.Narration != "" {
		fmt.Fprintln(&b, h.render(rec.Narration))
	}

	switch {
	case len(rec.Image) > 0:
		line, err := h.image(index, rec.Image)
		if err != nil {
			return err
		}
		fmt.Fprintln(&b, line)
	case rec.IsError:
		fmt.Fprintf(&b, "Error: %s\n", rec.Result)
	default:
		fmt.Fprintln(&b, h.truncate(rec.Result))
	}
	fmt.Fprintln(&b)

	_, err := io.WriteString(h.Writer, b.String())
	return err
}

func (h *TextHandler) Finished(ctx context.Context, s *domain.Session) error {
	_, err := fmt.Fprintf(h.Writer, "%s\n%s\n", h.header("Answer"), h.render(s.Answer()))
	return err
}

func (h *TextHandler) image(index int, data []byte) (string, error) {
	if h.ImageDir == "" {
		return fmt.Sprintf("[chart: %d bytes]", len(data)), nil
	}
	if err := os.MkdirAll(h.ImageDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(h.ImageDir, fmt.Sprintf("step-%d.png", index+1))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	return "[chart: " + path + "]", nil
}

func (h *TextHandler) render(text string) string {
	if h.Renderer == nil {
		return strings.TrimSpace(text)
	}
	rendered, err := h.Renderer(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(rendered)
}

func (h *TextHandler) header(text string) string {
	if h.Header == nil {
		return text
	}
	return h.Header(text)
}

func (h *TextHandler) truncate(text string) string {
	if h.MaxResultLines <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= h.MaxResultLines {
		return text
	}
	return strings.Join(lines[:h.MaxResultLines], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-h.MaxResultLines)
}

// DescribeCall formats a call as name(arguments) for display.
func DescribeCall(call *domain.Call) string {
	if call == nil {
		return "<no call>"
	}
	if len(call.Input) == 0 {
		return call.Name + "()"
	}
	args, err := json.Marshal(call.Input)
	if err != nil {
		return call.Name + "(?)"
	}
	return call.Name + string(args)
}
