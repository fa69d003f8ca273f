package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/tui"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review FILE",
		Short: "Interactively review a batch of scanned receipts",
		Long: `Open a batch of extracted receipts in the terminal UI. Each receipt can be
corrected, accepted, or discarded before the whole batch is saved.

Examples:
  receipts review ~/Scans/2024-06.json
  receipts review statement.qfx`,
		Args: cobra.ExactArgs(1),
		RunE: runReview,
	}

	cmd.Flags().Bool("ofx", false, "Treat the file as an OFX/QFX statement")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	asOFX, _ := cmd.Flags().GetBool("ofx")
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	session := newSession()
	final, err := tui.Run(ctx, session,
		tui.WithLoader(func(ctx context.Context) ([]model.ExtractionResult, error) {
			return loadResults(ctx, path, asOFX)
		}),
		tui.WithSaver(newSaver(store, cfg, nil)),
	)
	if err != nil {
		return err
	}

	slog.Info("Review finished",
		"phase", final.Phase.String(),
		"items", len(final.Items),
		"saved", final.SavedCount,
		"failed", final.FailedCount)
	return nil
}
