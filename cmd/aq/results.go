package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/basequant/aq/internal/duckdb"
)

func newResultsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Query results stored by quantify --db",
		Example: `  aq results runs --db results.duckdb
  aq results show --db results.duckdb HBB1_1_L001-ds.abc
  aq results delete --db results.duckdb 20260101T120000Z`,
	}
	cmd.PersistentFlags().String("db", "", "DuckDB database written by quantify --db")

	cmd.AddCommand(&cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				return printRuns(cmd.OutOrStdout(), s)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <directory>",
		Short: "Show every stored record of a sample directory",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				return printSample(cmd.OutOrStdout(), s, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				if err := s.DeleteRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

// withStore opens the database named by --db or the db config key.
func withStore(cmd *cobra.Command, fn func(s *duckdb.Store) error) error {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = viper.GetString("db")
	}
	if path == "" {
		return &usageError{err: errors.New("no database given; use --db or set db in the config")}
	}
	s, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func printRuns(w io.Writer, s *duckdb.Store) error {
	runs, err := s.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSAMPLES\tONESEQ")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.RunID, r.CreatedAt.Local().Format(time.DateTime), r.Samples, r.OneSeq)
	}
	return tw.Flush()
}

func printSample(w io.Writer, s *duckdb.Store, dir string) error {
	stored, err := s.LookupSample(dir)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return fmt.Errorf("no stored results for %s", dir)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tALIGNED\tTOTAL\tW_BYSTANDERS\tWO_BYSTANDERS\tINDEPENDENT\tALLELE_TABLE")
	for _, st := range stored {
		m := st.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.RunID, m.Status,
			m.Reads.AlignedString(), m.Reads.TotalString(),
			m.CorrectionWithBystanders, m.CorrectionWithoutBystanders, m.IndependentCorrection,
			st.AlleleTable.Path)
	}
	return tw.Flush()
}
