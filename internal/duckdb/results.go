package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/basequant/aq/internal/metrics"
)

// SampleResult is a sample record together with the allele table it was
// computed from.
type SampleResult struct {
	Metrics     *metrics.SampleMetrics
	AlleleTable FileFingerprint
}

// OneSeqResult is a ONE-seq record together with its allele table.
type OneSeqResult struct {
	Metrics     *metrics.OneSeqMetrics
	AlleleTable FileFingerprint
}

// StoredSample is a sample record read back from the store.
type StoredSample struct {
	RunID       string
	CreatedAt   time.Time
	Metrics     *metrics.SampleMetrics
	AlleleTable FileFingerprint
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	RunID     string
	CreatedAt time.Time
	Samples   int
	OneSeq    int
}

// WriteSampleResults stores the records of a run using the Appender API.
// Records already stored for runID are replaced, and duplicate directories
// within results are written once.
func (s *Store) WriteSampleResults(runID string, results []SampleResult) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(results))
	deduped := make([]SampleResult, 0, len(results))
	for _, r := range results {
		if !seen[r.Metrics.Directory] {
			seen[r.Metrics.Directory] = true
			deduped = append(deduped, r)
		}
	}

	if _, err := s.db.Exec("DELETE FROM sample_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("replace run %s: %w", runID, err)
	}

	now := time.Now().UTC()
	return s.appendRows("sample_results", func(a *goduckdb.Appender) error {
		for _, r := range deduped {
			m := r.Metrics
			aligned, total := nullCounts(m.Reads)
			if err := a.AppendRow(
				runID, m.Directory, m.Sample, string(m.Status),
				aligned, total,
				nullValue(m.CorrectionWithBystanders),
				nullValue(m.CorrectionWithoutBystanders),
				nullValue(m.IndependentCorrection),
				nullValue(m.IndepLessWBystanders),
				nullValue(m.WBystandersLessWoBystanders),
				m.TargetLocus, m.PerfectCorrection, m.CorrectedLocusWithBystanders(),
				r.AlleleTable.Path, r.AlleleTable.Size, nullTime(r.AlleleTable.ModTime),
				now,
			); err != nil {
				return fmt.Errorf("append sample result: %w", err)
			}
		}
		return nil
	})
}

// WriteOneSeqResults stores ONE-seq records of a run, replacing any stored
// for runID.
func (s *Store) WriteOneSeqResults(runID string, results []OneSeqResult) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(results))
	deduped := make([]OneSeqResult, 0, len(results))
	for _, r := range results {
		if !seen[r.Metrics.Directory] {
			seen[r.Metrics.Directory] = true
			deduped = append(deduped, r)
		}
	}

	if _, err := s.db.Exec("DELETE FROM oneseq_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("replace run %s: %w", runID, err)
	}

	now := time.Now().UTC()
	return s.appendRows("oneseq_results", func(a *goduckdb.Appender) error {
		for _, r := range deduped {
			m := r.Metrics
			aligned, total := nullCounts(m.Reads)
			if err := a.AppendRow(
				runID, m.Directory, m.Sample,
				aligned, total,
				nullValue(m.WindowPercent), nullValue(m.ProtospacerPercent),
				m.Guide, int32(len(m.WindowVariants)), int32(len(m.ProtospacerVariants)),
				r.AlleleTable.Path, r.AlleleTable.Size, nullTime(r.AlleleTable.ModTime),
				now,
			); err != nil {
				return fmt.Errorf("append ONE-seq result: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) appendRows(table string, fn func(a *goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// LookupSample returns every stored record for a directory, oldest first.
func (s *Store) LookupSample(directory string) ([]StoredSample, error) {
	rows, err := s.db.Query(`SELECT
		run_id, created_at, directory, sample, status,
		reads_aligned, reads_total,
		correction_with_bystanders, correction_without_bystanders,
		independent_correction, indep_less_w_bystanders, w_bystanders_less_wo_bystanders,
		target_locus, perfect_correction, corrected_locus_with_bystanders,
		allele_table, allele_table_size, allele_table_modtime
		FROM sample_results
		WHERE directory = ?
		ORDER BY created_at, run_id`, directory)
	if err != nil {
		return nil, fmt.Errorf("query sample: %w", err)
	}
	defer rows.Close()

	var out []StoredSample
	for rows.Next() {
		var (
			st                           StoredSample
			m                            metrics.SampleMetrics
			status, locus                string
			aligned, total, tableSize    sql.NullInt64
			with, without, indep, d1, d2 sql.NullFloat64
			tablePath                    sql.NullString
			tableMod                     sql.NullTime
		)
		if err := rows.Scan(
			&st.RunID, &st.CreatedAt, &m.Directory, &m.Sample, &status,
			&aligned, &total,
			&with, &without, &indep, &d1, &d2,
			&m.TargetLocus, &m.PerfectCorrection, &locus,
			&tablePath, &tableSize, &tableMod,
		); err != nil {
			return nil, fmt.Errorf("scan sample result: %w", err)
		}
		m.Status = metrics.Status(status)
		m.Reads = metrics.ReadCounts{Aligned: aligned.Int64, Total: total.Int64, Known: aligned.Valid && total.Valid}
		m.CorrectionWithBystanders = fromNull(with)
		m.CorrectionWithoutBystanders = fromNull(without)
		m.IndependentCorrection = fromNull(indep)
		m.IndepLessWBystanders = fromNull(d1)
		m.WBystandersLessWoBystanders = fromNull(d2)
		if m.Status == metrics.StatusNotAnalyzed || locus == "" {
			m.Note = locus
		} else {
			m.Variants = strings.Split(locus, metrics.VariantSeparator)
		}
		st.Metrics = &m
		st.AlleleTable = FileFingerprint{Path: tablePath.String, Size: tableSize.Int64}
		if tableMod.Valid {
			st.AlleleTable.ModTime = tableMod.Time
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample results: %w", err)
	}
	return out, nil
}

// Unchanged reports the most recent run whose stored record for directory
// was computed from an allele table identical to fp.
func (s *Store) Unchanged(directory string, fp FileFingerprint) (string, bool, error) {
	if !fp.Known() {
		return "", false, nil
	}
	stored, err := s.LookupSample(directory)
	if err != nil {
		return "", false, err
	}
	want := FileFingerprint{Path: fp.Path, Size: fp.Size, ModTime: storedTime(fp.ModTime)}
	for i := len(stored) - 1; i >= 0; i-- {
		got := stored[i].AlleleTable
		got.ModTime = got.ModTime.UTC()
		if got.Same(want) {
			return stored[i].RunID, true, nil
		}
	}
	return "", false, nil
}

// Runs lists the stored runs, newest first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT run_id, min(created_at),
		count(*) FILTER (WHERE kind = 'sample'),
		count(*) FILTER (WHERE kind = 'oneseq')
		FROM (
			SELECT run_id, created_at, 'sample' AS kind FROM sample_results
			UNION ALL
			SELECT run_id, created_at, 'oneseq' AS kind FROM oneseq_results
		)
		GROUP BY run_id
		ORDER BY min(created_at) DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		var samples, oneseq int64
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &samples, &oneseq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Samples, r.OneSeq = int(samples), int(oneseq)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// DeleteRun removes every record of a run.
func (s *Store) DeleteRun(runID string) error {
	for _, table := range []string{"sample_results", "oneseq_results"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
	}
	return nil
}

func nullValue(v metrics.Value) driver.Value {
	if f, ok := v.Get(); ok {
		return f
	}
	return nil
}

func nullCounts(r metrics.ReadCounts) (aligned, total driver.Value) {
	if !r.Known {
		return nil, nil
	}
	return r.Aligned, r.Total
}

func fromNull(f sql.NullFloat64) metrics.Value {
	if !f.Valid {
		return metrics.NA
	}
	return metrics.Of(f.Float64)
}

func nullTime(t time.Time) driver.Value {
	if t.IsZero() {
		return nil
	}
	return storedTime(t)
}

// storedTime truncates t to the precision of a DuckDB TIMESTAMP.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
