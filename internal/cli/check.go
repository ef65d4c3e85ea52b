package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstrip/internal/model"
)

var (
	checkStyle string
	checkJSON  bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <statement>",
	Short: "Check a statement against the verification backend",
	Long: `Check sends one statement to the backend and prints the verdict.
A successful check is added to history.

Example:
  factstrip check "The sky is blue"
  factstrip check "Cats can fly" --style anime
  factstrip check "Water boils at 100C" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkStyle, "style", "s", string(model.DefaultStyle), "comic style (anime/manga, newspaper, normal)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the result as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	statement := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n\n", statement)
	}

	res, err := sess.Submit(ctx, statement, model.Style(checkStyle))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		return writeJSON(out, res)
	}
	renderResult(out, *res)
	return nil
}
