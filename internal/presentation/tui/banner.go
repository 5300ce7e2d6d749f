package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tabula banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _        _           _       ", "#34d399"},
		{"| |_ __ _| |__  _   _| | __ _ ", "#2dd4bf"},
		{"| __/ _` | '_ \\| | | | |/ _` |", "#22d3ee"},
		{"| || (_| | |_) | |_| | | (_| |", "#38bdf8"},
		{" \\__\\__,_|_.__/ \\__,_|_|\\__,_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
