package crispresso

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shenwei356/xopen"
)

const utf8BOM = "\ufeff"

// TableReader reads a tab-separated CRISPResso table with a header row.
// Plain and gzip-compressed files are both accepted.
type TableReader struct {
	reader     *bufio.Reader
	closer     io.Closer
	header     []string
	lineNumber int
}

// OpenTable opens a table and reads its header.
func OpenTable(path string) (*TableReader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	if info.Size() == 0 {
		return nil, &ParseError{Path: path, Line: 1, Message: "no header line found"}
	}

	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	t := &TableReader{reader: f.Reader, closer: f}
	if err := t.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// NewTableReader reads a table from r. The caller owns r.
func NewTableReader(r io.Reader) (*TableReader, error) {
	t := &TableReader{reader: bufio.NewReader(r)}
	if err := t.readHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TableReader) readHeader() error {
	line, err := t.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return &ParseError{Line: 1, Message: "no header line found"}
		}
		return fmt.Errorf("read header: %w", err)
	}
	t.lineNumber++

	line = strings.TrimPrefix(strings.TrimRight(line, "\r\n"), utf8BOM)
	if line == "" {
		return &ParseError{Line: t.lineNumber, Message: "empty header line"}
	}
	t.header = strings.Split(line, "\t")
	return nil
}

// Header returns the header fields.
func (t *TableReader) Header() []string {
	return t.header
}

// Next returns the fields of the next non-empty row, or nil at EOF.
func (t *TableReader) Next() ([]string, error) {
	for {
		line, err := t.reader.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read table line: %w", err)
		}
		t.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}
		return strings.Split(line, "\t"), nil
	}
}

// ReadAll returns every remaining row.
func (t *TableReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		row, err := t.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// LineNumber returns the number of lines consumed so far.
func (t *TableReader) LineNumber() int {
	return t.lineNumber
}

// Close releases the underlying file, if the reader opened one.
func (t *TableReader) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// ParseError represents a structural problem in a table, with line context.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("table parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("table parse error at line %d: %s", e.Line, e.Message)
}

// ReadTable reads a whole table from path.
func ReadTable(path string) ([]string, [][]string, error) {
	t, err := OpenTable(path)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, nil, err
	}
	defer t.Close()

	rows, err := t.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return t.Header(), rows, nil
}
