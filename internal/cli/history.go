package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstrip/internal/model"
)

var historyJSON bool

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and manage past checks",
	Long: `History shows past checks, newest first. Only the most recent
history.capacity checks are kept.`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one past check",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		entry, ok := sess.GetByID(model.EntryID(args[0]))
		if !ok {
			return fmt.Errorf("no history entry with id %s", args[0])
		}
		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), entry)
		}
		renderResult(cmd.OutOrStdout(), entry.Result())
		return nil
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove one past check",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		if err := sess.Remove(model.EntryID(args[0])); err != nil {
			return fmt.Errorf("remove %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all past checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		sess.ClearAll()
		fmt.Fprintln(cmd.OutOrStdout(), "✓ History cleared")
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show analytics over the retained history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), sess.Analytics())
		}
		renderAnalytics(cmd.OutOrStdout(), sess.Analytics())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyRemoveCmd, historyClearCmd, historyStatsCmd)

	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "print as JSON")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	sess, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if historyJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"history":   sess.History(),
			"analytics": sess.Analytics(),
		})
	}
	renderHistory(cmd.OutOrStdout(), sess.History())
	return nil
}
