package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/cli"
	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/engine"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Save a batch of receipts without the interactive review",
		Long: `Load a batch of extracted receipts and save it straight to the database.

Examples:
  # Preview what would be saved
  receipts import ~/Scans/2024-06.json --dry-run

  # Save everything that extracted cleanly
  receipts import ~/Scans/2024-06.json --ready-only --yes

  # Import debits from a bank statement
  receipts import ~/Downloads/checking.qfx --ofx --yes`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("yes", "y", false, "Save without asking for confirmation")
	cmd.Flags().BoolP("dry-run", "d", false, "Show the batch without saving")
	cmd.Flags().Bool("ready-only", false, "Discard receipts that still need review before saving")
	cmd.Flags().Bool("ofx", false, "Treat the file as an OFX/QFX statement")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	readyOnly, _ := cmd.Flags().GetBool("ready-only")
	asOFX, _ := cmd.Flags().GetBool("ofx")
	path := args[0]
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session := newSession()
	session.StartLoading()

	results, err := loadResults(ctx, path, asOFX)
	if err != nil {
		session.LoadFailed(err.Error())
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if len(results) == 0 {
		return common.NewUserError(fmt.Sprintf("%s contains no receipts", path), common.ErrNoReceipts)
	}
	if res := session.LoadBatch(results); !res.OK() {
		session.LoadFailed(res.Err.Error())
		return fmt.Errorf("failed to load %s: %w", path, res.Err)
	}

	if readyOnly {
		for _, item := range session.State().Items {
			if item.Status != model.StatusReady {
				session.DiscardItem(item.ID)
			}
		}
	}

	st := session.State()
	if err := printBatch(out, st); err != nil {
		return err
	}
	if len(st.Items) == 0 {
		return common.NewUserError("nothing left to save", common.ErrNoReceipts)
	}
	if dryRun {
		slog.Info("Dry run, nothing saved", "items", len(st.Items))
		return nil
	}

	if !yes {
		reader := cli.NewNonBlockingReader(cmd.InOrStdin())
		ok, err := reader.Confirm(ctx, out, fmt.Sprintf("Save %d receipts?", len(st.Items)))
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("Import cancelled")
			return nil
		}
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(len(st.Items),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Saving receipts...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	saver := newSaver(store, cfg, func(_, _ int, itemID string, saveErr error) {
		if saveErr != nil {
			slog.Debug("Receipt not saved", "item_id", itemID, "error", saveErr)
		}
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	})

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(),
		"Save interrupted!", "Receipts written before the interrupt stay saved; the rest are reported as failed.")
	saveCtx := interrupts.HandleInterrupts(ctx)
	defer interrupts.Stop()

	summary, err := saver.SaveBatch(saveCtx, session)
	if summary != nil {
		fmt.Fprintln(out, renderSummary(summary))
	}
	return err
}

func renderSummary(summary *engine.SaveSummary) string {
	headline := cli.FormatSuccess(fmt.Sprintf("Saved %d of %d receipts in %s",
		summary.Saved, summary.Total, summary.Duration.Round(time.Millisecond)))
	if summary.Phase == batch.PhaseError {
		headline = cli.FormatError(fmt.Sprintf("Saved %d of %d receipts: %s",
			summary.Saved, summary.Total, summary.Error))
	}

	lines := []string{headline}
	ids := make([]string, 0, len(summary.Failures))
	for id := range summary.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, cli.SubtleStyle.Render(fmt.Sprintf("  %s: %s", id, summary.Failures[id])))
	}
	return cli.RenderBox("Import", strings.Join(lines, "\n"))
}

func printBatch(w io.Writer, st batch.State) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tMERCHANT\tDATE\tTOTAL\tCONFIDENCE")
	for _, item := range st.Items {
		merchant, date, total := "-", "-", "-"
		if item.Receipt != nil {
			merchant = item.Receipt.Merchant
			if !item.Receipt.Date.IsZero() {
				date = item.Receipt.Date.Format("2006-01-02")
			}
			total = fmt.Sprintf("%.2f", item.Receipt.Total)
		}
		if item.Status == model.StatusError {
			merchant = "(" + item.FailureReason + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.0f%%\n",
			item.Index+1, item.Status, merchant, date, total, item.Confidence*100)
	}
	return tw.Flush()
}
