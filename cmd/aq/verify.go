package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/amplicon"
)

func newVerifyCmd(a *app) *cobra.Command {
	var truncate bool

	cmd := &cobra.Command{
		Use:   "verify [amplicon_list.csv]",
		Short: "Check an amplicon list before running the pipeline",
		Long: `Check that an amplicon list has the required columns and that every
amplicon is a plain sequence. Guides that are not 20 nt long are reported;
with --truncate they are cut to 20 nt and the original list is kept as
<name>_untruncated.csv.`,
		Example: `  aq verify amplicon_list.csv
  aq verify --truncate amplicon_list.csv`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := listPath(".")
			if len(args) > 0 {
				path = args[0]
			}
			return runVerify(cmd.OutOrStdout(), a.logger, path, truncate)
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "Truncate guides longer than 20 nt (original is backed up)")
	return cmd
}

func runVerify(w io.Writer, logger *zap.Logger, path string, truncate bool) error {
	list, err := amplicon.NewLoader(logger).Load(path)
	if err != nil {
		return err
	}
	rep, err := amplicon.Verify(list, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d amplicons\n", path, len(rep.Names))
	for _, name := range rep.Names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	if len(rep.NonStandardGuides) == 0 {
		return nil
	}

	fmt.Fprintf(w, "Guides that are not %d nt:\n", amplicon.StandardGuideLength)
	for _, g := range rep.NonStandardGuides {
		fmt.Fprintf(w, "  %s\t%d nt\t%s\n", g.Name, g.Length, g.Sequence)
	}
	if !truncate {
		return nil
	}

	n, err := amplicon.Truncate(list, logger)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(w, "Truncated %d guide(s); original saved to %s\n", n, amplicon.BackupPath(path))
	}
	return nil
}
