package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

var (
	// ErrEmptyInput is returned when the input has no header row.
	ErrEmptyInput = errors.New("input has no header row")
	// ErrRaggedRow is returned when a row has more cells than the header.
	ErrRaggedRow = errors.New("row has more cells than header")
	// ErrMalformedCell is returned when a non-null cell is not a number.
	ErrMalformedCell = errors.New("malformed cell")
)

// DefaultNullTokens are the cell contents read as "no value".
var DefaultNullTokens = []string{"", "--"}

// calendarLayouts are accepted for the epoch column in addition to plain
// JD/MJD numbers.
var calendarLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ReaderOptions controls how observation files are parsed.
type ReaderOptions struct {
	// Delimiter separates cells. Zero inspects the header: comma if it holds
	// one, else tab, else runs of whitespace.
	Delimiter rune
	// NullTokens replaces DefaultNullTokens when non-nil. Matching is done
	// on the trimmed cell.
	NullTokens []string
	// Comment marks lines to skip, after any indentation. Zero means '#'.
	Comment rune
	// Columns restricts parsing to the named header cells; other columns are
	// dropped without being parsed. Empty keeps every column.
	Columns []string
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.NullTokens == nil {
		o.NullTokens = DefaultNullTokens
	}
	if o.Comment == 0 {
		o.Comment = '#'
	}
	return o
}

// CellError locates a cell that could not be parsed.
type CellError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("line %d, column %q: %v: %q", e.Line, e.Column, e.Err, e.Value)
}

func (e *CellError) Unwrap() error { return e.Err }

type record struct {
	line   int
	fields []string
}

// ReadFile opens path and parses it with ReadTable.
func ReadFile(path string, opts ReaderOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadTable parses a delimited observation file into a Table. The first
// non-comment line is the header; every header name becomes a column,
// including names the normalizer does not use.
func ReadTable(r io.Reader, opts ReaderOptions) (*Table, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(data, opts.Comment)
	}

	var records []record
	if delim == ' ' {
		records, err = splitWhitespace(data, opts.Comment)
	} else {
		records, err = splitDelimited(data, delim, opts.Comment)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	header := make([]string, len(records[0].fields))
	for i, h := range records[0].fields {
		header[i] = strings.TrimSpace(h)
	}
	rows := records[1:]

	nulls := make(map[string]struct{}, len(opts.NullTokens))
	for _, tok := range opts.NullTokens {
		nulls[tok] = struct{}{}
	}

	keep := make([]bool, len(header))
	for i, name := range header {
		keep[i] = len(opts.Columns) == 0 || slices.Contains(opts.Columns, name)
	}

	cols := make([]*Column, len(header))
	for i := range cols {
		cols[i] = NewColumn(len(rows))
	}

	for _, rec := range rows {
		if len(rec.fields) > len(header) {
			return nil, fmt.Errorf("line %d: %w (%d > %d)", rec.line, ErrRaggedRow, len(rec.fields), len(header))
		}
		for j, name := range header {
			if !keep[j] {
				continue
			}
			if j >= len(rec.fields) {
				cols[j].AppendNull()
				continue
			}
			raw := strings.TrimSpace(rec.fields[j])
			if _, isNull := nulls[raw]; isNull {
				cols[j].AppendNull()
				continue
			}
			v, err := parseCell(name, raw)
			if err != nil {
				return nil, &CellError{Line: rec.line, Column: name, Value: raw, Err: ErrMalformedCell}
			}
			cols[j].Append(v)
		}
	}

	t := NewTable(len(rows))
	for i, name := range header {
		if !keep[i] {
			continue
		}
		if err := t.AddColumn(name, cols[i]); err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
	}
	return t, nil
}

func parseCell(column, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil {
		return v, nil
	}
	if column != model.ColEpoch {
		return 0, err
	}
	for _, layout := range calendarLayouts {
		if ts, terr := time.Parse(layout, raw); terr == nil {
			return CalendarToJD(ts), nil
		}
	}
	return 0, err
}

func detectDelimiter(data []byte, comment rune) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, string(comment)) {
			continue
		}
		if strings.ContainsRune(line, ',') {
			return ','
		}
		if strings.ContainsRune(line, '\t') {
			return '\t'
		}
		return ' '
	}
	return ','
}

func splitDelimited(data []byte, delim, comment rune) ([]record, error) {
	cr := csv.NewReader(bytes.NewReader(blankIndentedComments(data, comment)))
	cr.Comma = delim
	cr.Comment = comment
	cr.FieldsPerRecord = -1
	// Leading-space trimming would swallow empty cells of a tab-delimited file.
	cr.TrimLeadingSpace = !unicode.IsSpace(delim)

	var out []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited input: %w", err)
		}
		line, _ := cr.FieldPos(0)
		out = append(out, record{line: line, fields: fields})
	}
	return out, nil
}

// blankIndentedComments empties comment lines that start after leading
// whitespace, which csv.Reader only recognizes at column zero. Line numbers
// are preserved.
func blankIndentedComments(data []byte, comment rune) []byte {
	prefix := []byte(string(comment))
	lines := bytes.SplitAfter(data, []byte("\n"))
	for i, l := range lines {
		trimmed := bytes.TrimLeft(l, " \t")
		if len(trimmed) == len(l) || !bytes.HasPrefix(trimmed, prefix) {
			continue
		}
		if bytes.HasSuffix(l, []byte("\n")) {
			lines[i] = []byte("\n")
		} else {
			lines[i] = nil
		}
	}
	return bytes.Join(lines, nil)
}

func splitWhitespace(data []byte, comment rune) ([]record, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var out []record
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, string(comment)) {
			continue
		}
		out = append(out, record{line: line, fields: strings.Fields(text)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return out, nil
}
