// Package csv loads delimited text files into tables.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
)

// ErrTooManyRows is returned when a source exceeds the configured row cap.
var ErrTooManyRows = errors.New("source exceeds row limit")

// Loader implements ports.SourceLoader for CSV and TSV files.
type Loader struct {
	delimiter rune
	maxRows   int
}

// Option configures the Loader.
type Option func(*Loader)

// WithDelimiter forces the field separator instead of sniffing it from the extension.
func WithDelimiter(r rune) Option {
	return func(l *Loader) {
		l.delimiter = r
	}
}

// WithMaxRows caps the number of data rows. 0 means unlimited.
func WithMaxRows(n int) Option {
	return func(l *Loader) {
		l.maxRows = n
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads path into a table. Any failure is reported as *domain.SourceLoadError.
func (l *Loader) Load(ctx context.Context, path string) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.SourceLoadError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := l.Read(ctx, f, l.delimiterFor(path))
	if err != nil {
		return nil, &domain.SourceLoadError{Path: path, Err: err}
	}
	return t, nil
}

func (l *Loader) delimiterFor(path string) rune {
	if l.delimiter != 0 {
		return l.delimiter
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	}
	return ','
}

// Read parses delimited text with a header row. Empty cells become missing values
// and each column gets the narrowest kind every non-empty cell fits.
func (l *Loader) Read(ctx context.Context, r io.Reader, delimiter rune) (*tabular.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if names[i] == "" {
			names[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}

	cells := make([][]string, len(names))
	rows := 0
	for {
		if rows%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) > len(names) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", rows+2, len(record), len(names))
		}
		rows++
		if l.maxRows > 0 && rows > l.maxRows {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyRows, l.maxRows)
		}
		for i := range names {
			v := ""
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			cells[i] = append(cells[i], v)
		}
	}

	cols := make([]*tabular.Column, len(names))
	for i, name := range names {
		cols[i] = tabular.NewColumn(name, infer(cells[i]))
	}
	return tabular.NewTable(cols...)
}

// infer converts a column of raw cells to numbers or booleans when every
// non-empty cell parses as one, and to strings otherwise.
func infer(raw []string) []any {
	out := make([]any, len(raw))
	if nums, ok := parseAll(raw, parseNumber); ok {
		return nums
	}
	if bools, ok := parseAll(raw, parseBool); ok {
		return bools
	}
	for i, s := range raw {
		if !isMissing(s) {
			out[i] = s
		}
	}
	return out
}

func parseAll(raw []string, parse func(string) (any, bool)) ([]any, bool) {
	out := make([]any, len(raw))
	for i, s := range raw {
		if isMissing(s) {
			continue
		}
		v, ok := parse(s)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func isMissing(s string) bool {
	switch s {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

var thousands = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

func parseNumber(s string) (any, bool) {
	if thousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

func parseBool(s string) (any, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return nil, false
}
