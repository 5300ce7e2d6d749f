package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestPrintBanner_IncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")
	if !strings.Contains(buf.String(), "v1.2.3") {
		t.Errorf("expected version in banner, got %q", buf.String())
	}
}

func TestRenderer_RendersMarkdown(t *testing.T) {
	out, err := NewRenderer(80)("# Result\n\nTotal is 22")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "Total is 22") {
		t.Errorf("expected rendered markdown, got %q", out)
	}
}

func TestHeader_KeepsText(t *testing.T) {
	for _, text := range []string{"[1] pop()", "Answer"} {
		if !strings.Contains(Header(text), text) {
			t.Errorf("Header(%q) lost its text", text)
		}
	}
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
	if Width(f) != 0 {
		t.Error("a regular file has no width")
	}
}
