// Package amplicon loads and validates the amplicon list that maps sample
// directories to their guide, amplicon, and editing parameters.
package amplicon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"go.uber.org/zap"
)

// Amplicon list column names.
const (
	ColName        = "name"
	ColGuide       = "protospacer_or_PEG"
	ColEditor      = "editor"
	ColOrientation = "guide_orientation_relative_to_amplicon"
	ColAmplicon    = "amplicon"
	ColTolerated   = "tolerated_edits"
	ColIntended    = "intended_edit"
)

// RequiredColumns lists the header fields every amplicon list must carry, in
// the order they are written back.
var RequiredColumns = []string{
	ColName, ColGuide, ColEditor, ColOrientation, ColAmplicon, ColTolerated, ColIntended,
}

// DefaultListName is the amplicon list file expected in a working directory.
const DefaultListName = "amplicon_list.csv"

// OneSeqKeyword marks an entry as a ONE-seq survey in the intended_edit column.
const OneSeqKeyword = "ONESEQ"

const utf8BOM = "\ufeff"

// Entry is one row of the amplicon list. Text fields are trimmed and
// upper-cased; editor and orientation are validated when processed.
type Entry struct {
	Row         int // 1-based line number in the file
	Name        string
	Guide       string
	Amplicon    string
	Orientation string
	Editor      string
	Intended    int   // 1-based guide position; zero when OneSeq or unrecognized
	OneSeq      bool  // intended_edit is ONESEQ or ONE-SEQ
	Tolerated   []int // bystander positions
	RawIntended string
}

// HasIntended reports whether the entry carries a usable intended edit.
func (e *Entry) HasIntended() bool {
	return e.OneSeq || e.Intended > 0
}

// HeaderError reports missing amplicon list columns.
type HeaderError struct {
	Missing  []string
	Expected []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("header mismatch in amplicon list: missing %s (expected %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Expected, ", "))
}

// List is the parsed amplicon list.
type List struct {
	Path    string
	Header  []string
	Entries []*Entry
	records [][]string
}

// Names returns the upper-cased amplicon names in file order.
func (l *List) Names() []string {
	names := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		names[i] = e.Name
	}
	return names
}

// Identify returns the first entry whose name occurs in the upper-cased
// directory name.
func (l *List) Identify(dirName string) (*Entry, bool) {
	upper := strings.ToUpper(dirName)
	for _, e := range l.Entries {
		if e.Name != "" && strings.Contains(upper, e.Name) {
			return e, true
		}
	}
	return nil, false
}

// Lookup returns the entry with the given name, ignoring case.
func (l *List) Lookup(name string) (*Entry, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Loader reads amplicon lists.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(l *zap.Logger) *Loader {
	if l == nil {
		l = zap.NewNop()
	}
	return &Loader{logger: l}
}

// Load reads the amplicon list at path. Plain and gzipped files are
// supported, and a leading UTF-8 byte order mark is ignored.
func (ld *Loader) Load(path string) (*List, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open amplicon list: %w", err)
	}
	defer f.Close()

	list, err := ld.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	list.Path = path
	return list, nil
}

// Parse reads an amplicon list from r.
func (ld *Loader) Parse(r io.Reader) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &HeaderError{Missing: RequiredColumns, Expected: RequiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("read amplicon list header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing, Expected: RequiredColumns}
	}

	list := &List{Header: header}
	row := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("read amplicon list row %d: %w", row, err)
		}
		list.records = append(list.records, rec)
		list.Entries = append(list.Entries, ld.entry(row, rec, idx))
	}
	return list, nil
}

func (ld *Loader) entry(row int, rec []string, idx map[string]int) *Entry {
	field := func(col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	e := &Entry{
		Row:         row,
		Name:        strings.ToUpper(field(ColName)),
		Guide:       strings.ToUpper(field(ColGuide)),
		Amplicon:    strings.ToUpper(field(ColAmplicon)),
		Orientation: strings.ToUpper(field(ColOrientation)),
		Editor:      strings.ToUpper(field(ColEditor)),
		Tolerated:   ParseTolerated(field(ColTolerated)),
		RawIntended: field(ColIntended),
	}

	intended := strings.ReplaceAll(strings.ToUpper(e.RawIntended), "-", "")
	switch {
	case intended == OneSeqKeyword:
		e.OneSeq = true
	case isDigits(intended):
		n, err := strconv.Atoi(intended)
		if err == nil {
			e.Intended = n
		}
	default:
		ld.logger.Warn("unrecognized intended_edit value",
			zap.Int("row", row), zap.String("name", e.Name), zap.String("value", e.RawIntended))
	}
	return e
}

// ParseTolerated parses a comma-separated list of positions. Items that are
// not plain digits are ignored.
func ParseTolerated(s string) []int {
	var out []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if !isDigits(item) {
			continue
		}
		if n, err := strconv.Atoi(item); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
