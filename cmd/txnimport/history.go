package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports for the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := core.NewService(store).ListImports(ctx, tenantID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No imports recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tFILE\tTYPE\tIMPORTED\tFAILED\tDUPLICATES\tDRY RUN\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\t%s\n",
					r.StartedAt.Local().Format(time.DateTime),
					r.FileName, r.ContentType,
					r.Imported, r.Failed, r.Duplicates,
					r.DryRun, r.Duration.Round(time.Millisecond),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", core.DefaultHistoryLimit, "maximum number of runs to show")
	return cmd
}
