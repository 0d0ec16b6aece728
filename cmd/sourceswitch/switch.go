package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Move a shelved book to another source",
}

var switchAutoCmd = &cobra.Command{
	Use:   "auto <book-id>",
	Short: "Search every source and move the book to the best match",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitchAuto,
}

var switchManualCmd = &cobra.Command{
	Use:   "manual <book-id>",
	Short: "Move the book to a given source and result URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitchManual,
}

var (
	manualSourceID  string
	manualResultURL string
)

func init() {
	switchManualCmd.Flags().StringVar(&manualSourceID, "source", "", "Target source ID (required)")
	switchManualCmd.Flags().StringVar(&manualResultURL, "url", "", "Book URL on the target source (required)")
	for _, name := range []string{"source", "url"} {
		if err := switchManualCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	switchCmd.AddCommand(switchAutoCmd, switchManualCmd)
	rootCmd.AddCommand(switchCmd)
}

func runSwitchAuto(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	book, err := a.books.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load book %s: %w", args[0], err)
	}

	return followSwitch(cmd.OutOrStdout(), a.coordinator.RequestAutoSwitch(cmd.Context(), book))
}

func runSwitchManual(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	book, err := a.books.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load book %s: %w", args[0], err)
	}

	candidate := domain.SearchCandidate{
		SourceID:  manualSourceID,
		Title:     book.Title,
		Author:    book.Author,
		ResultURL: manualResultURL,
	}
	return followSwitch(cmd.OutOrStdout(), a.coordinator.RequestManualSwitch(cmd.Context(), book, candidate))
}

// followSwitch prints every transition of op and reports its outcome
func followSwitch(out io.Writer, op driving.SwitchOperation) error {
	for ev := range op.Events() {
		fmt.Fprintf(out, "%s  %s\n", ev.At.Format("15:04:05.000"), ev.State)
	}

	// Events is closed once the outcome is set
	outcome, err := op.Wait(context.Background())
	if err != nil {
		return err
	}
	switch outcome.State {
	case domain.SwitchStateCompleted:
		fmt.Fprintf(out, "book %s now on %s (%d chapters, resume at chapter %d)\n",
			outcome.BookID, outcome.Book.SourceID, outcome.Chapters.Len(), outcome.SuggestedChapter+1)
		return nil
	default:
		return fmt.Errorf("switch %s: %s", outcome.State, outcome.Reason)
	}
}
