package amplicon

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StandardGuideLength is the expected protospacer length.
const StandardGuideLength = 20

// BackupSuffix replaces the .csv extension of a list backed up before
// truncation.
const BackupSuffix = "_untruncated.csv"

// RowError reports an invalid amplicon list row.
type RowError struct {
	Row     int
	Name    string
	Field   string
	Value   string
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid %s at row %d (name: %q): %s; found %q", e.Field, e.Row, e.Name, e.Message, e.Value)
}

// NonStandardGuide describes an entry whose guide is not StandardGuideLength long.
type NonStandardGuide struct {
	Name     string
	Length   int
	Sequence string
}

// Report is the outcome of verifying an amplicon list.
type Report struct {
	Names             []string
	NonStandardGuides []NonStandardGuide
}

// Verify checks every entry of the list. An amplicon containing anything
// other than letters is an error naming the row. Guides of non-standard
// length are only reported, since ONE-seq lists use them on purpose.
func Verify(list *List, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := &Report{Names: list.Names()}
	for _, e := range list.Entries {
		if !isLetters(e.Amplicon) {
			return rep, &RowError{
				Row:     e.Row,
				Name:    e.Name,
				Field:   ColAmplicon,
				Value:   e.Amplicon,
				Message: "amplicon must contain only letters (A-Z, a-z)",
			}
		}
		if len(e.Guide) != StandardGuideLength {
			rep.NonStandardGuides = append(rep.NonStandardGuides, NonStandardGuide{
				Name:     e.Name,
				Length:   len(e.Guide),
				Sequence: e.Guide,
			})
		}
	}

	for _, g := range rep.NonStandardGuides {
		logger.Warn("non-standard guide length",
			zap.String("name", g.Name),
			zap.Int("length", g.Length),
			zap.Int("expected", StandardGuideLength),
			zap.String("sequence", g.Sequence))
	}
	return rep, nil
}

// BackupPath returns the path the untruncated list is copied to.
func BackupPath(path string) string {
	if strings.HasSuffix(path, ".csv") {
		return strings.TrimSuffix(path, ".csv") + BackupSuffix
	}
	return path + BackupSuffix
}

// Truncate shortens guides longer than StandardGuideLength and rewrites the
// list in place, after copying the original to BackupPath. It returns the
// number of guides changed. Nothing is written when no guide needs changing.
func Truncate(list *List, logger *zap.Logger) (n int, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if list.Path == "" {
		return 0, fmt.Errorf("truncate amplicon list: list was not loaded from a file")
	}

	gi := -1
	for i, h := range list.Header {
		if h == ColGuide {
			gi = i
		}
	}
	if gi < 0 {
		return 0, &HeaderError{Missing: []string{ColGuide}, Expected: RequiredColumns}
	}
	for _, rec := range list.records {
		if gi < len(rec) && len(strings.TrimSpace(rec[gi])) > StandardGuideLength {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}

	backup := BackupPath(list.Path)
	if err := copyFile(list.Path, backup); err != nil {
		return 0, fmt.Errorf("back up amplicon list: %w", err)
	}
	logger.Info("original amplicon list backed up", zap.String("backup", backup))

	for i, rec := range list.records {
		if gi >= len(rec) {
			continue
		}
		g := strings.TrimSpace(rec[gi])
		if len(g) > StandardGuideLength {
			rec[gi] = g[:StandardGuideLength]
			list.Entries[i].Guide = strings.ToUpper(rec[gi])
		}
	}

	if err := writeList(list.Path, list.Header, list.records); err != nil {
		return 0, err
	}
	logger.Info("truncated non-standard guides", zap.Int("guides", n), zap.String("path", list.Path))
	return n, nil
}

func writeList(path string, header []string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write amplicon list: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := io.WriteString(f, utf8BOM); err != nil {
		return fmt.Errorf("write amplicon list: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write amplicon list header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write amplicon list rows: %w", err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	_, err = io.Copy(out, in)
	return err
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
