package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstrip/internal/model"
)

var explainJSON bool

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain <id>",
	Short: "Regenerate the step-by-step explanation of a past check",
	Long: `Explain asks the configured provider (explain.provider) for a fresh
four-step explanation and stores it on the history entry. If the provider
fails, a generic explanation is stored instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "print the updated entry as JSON")
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	entry, err := sess.RegenerateExplanation(ctx, model.EntryID(args[0]))
	if err != nil {
		return fmt.Errorf("explain %s: %w", args[0], err)
	}
	if explainJSON {
		return writeJSON(cmd.OutOrStdout(), entry)
	}
	renderResult(cmd.OutOrStdout(), entry.Result())
	return nil
}
