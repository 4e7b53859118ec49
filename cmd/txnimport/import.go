package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func (a *app) importCmd() *cobra.Command {
	var (
		dryRun      bool
		asJSON      bool
		noProgress  bool
		contentType string
		currency    string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or XLSX transaction file",
		Long: `Import every row of a CSV or XLSX file for the selected tenant.

The header row must contain date, amount, description and account columns;
category, currency and note are optional. Rows that fail validation, name an
unknown account or category, or repeat an existing transaction are reported
by line number and never stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			ct, err := core.ParseContentType(contentType, path)
			if err != nil {
				return explain(err)
			}

			if currency == "" {
				currency = a.v.GetString("import.default_currency")
			}
			if currency, err = normalizeCurrency(currency); err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc := core.NewService(store, core.WithDefaultCurrency(currency))

			progress := newImportProgress(cmd.ErrOrStderr(), !noProgress && !asJSON)

			report, err := svc.Import(ctx, core.ImportRequest{
				TenantID:    tenantID,
				FileName:    filepath.Base(path),
				ContentType: ct,
				Data:        data,
				DryRun:      dryRun,
				Progress:    progress.update,
			})
			progress.finish()
			if err != nil {
				return explain(err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without storing transactions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type of the file (default: from the extension)")
	cmd.Flags().StringVar(&currency, "currency", "", "currency for rows without one when the tenant has no base currency")

	return cmd
}

// importProgress drives a progress bar from core progress callbacks.
type importProgress struct {
	w       io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

func newImportProgress(w io.Writer, enabled bool) *importProgress {
	return &importProgress{w: w, enabled: enabled}
}

func (p *importProgress) update(ev core.ImportProgress) {
	if !p.enabled || ev.Phase == core.PhaseDecoding {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(ev.TotalRows,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Importing rows"),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(p.w)
			}),
		)
	}
	if err := p.bar.Set(ev.CurrentRow); err != nil {
		slog.Warn("failed to update progress bar", "error", err)
	}
}

func (p *importProgress) finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("failed to finish progress bar", "error", err)
	}
}

func printReport(w io.Writer, report core.ImportReport, dryRun bool) error {
	label := "Imported"
	if dryRun {
		label = "Would import"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s:\t%d\n", label, report.Imported)
	fmt.Fprintf(tw, "Failed:\t%d\n", report.Failed)
	fmt.Fprintf(tw, "Duplicates:\t%d\n", report.Duplicates)

	if len(report.Errors) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LINE\tMESSAGE")
		for _, e := range report.Errors {
			fmt.Fprintf(tw, "%d\t%s\n", e.Line, e.Message)
		}
	}
	return tw.Flush()
}
