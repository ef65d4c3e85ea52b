package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchStyle   string
	batchJSON    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check many statements from a file in parallel",
	Long: `Batch checks every statement in a file (one per line) concurrently.
Blank lines, # comments and repeated statements are skipped. Every successful
check is added to history.

Example:
  factstrip batch claims.txt
  factstrip batch claims.txt --concurrency 4 --style newspaper`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent checks")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVarP(&batchStyle, "style", "s", string(model.DefaultStyle), "comic style for every statement")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as JSON")
}

type batchLine struct {
	Statement string                    `json:"statement"`
	Result    *model.VerificationResult `json:"result"`
	Error     string                    `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	style, err := model.ParseStyle(batchStyle)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	sess, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Input file: %s\nWorkers:    %d\nTimeout:    %v\n\n", file, concurrency, batchTimeout)
	}

	results, err := worker.NewBatchProcessor(sess, concurrency).ProcessFile(ctx, file, style)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	out := cmd.OutOrStdout()
	if batchJSON {
		lines := make([]batchLine, 0, len(results))
		for _, r := range results {
			line := batchLine{Statement: r.Statement, Result: r.Result}
			if r.Error != nil {
				line.Error = r.Error.Error()
			}
			lines = append(lines, line)
		}
		return writeJSON(out, lines)
	}

	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", truncate(r.Statement, 60), r.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %-10s %s\n", verdictLabel(r.Result.Verdict), truncate(r.Statement, 60))
	}

	ok, failed := worker.Summary(results)
	byVerdict := worker.ByVerdict(results)
	fmt.Fprintf(out, "\n%d checked, %d failed (true %d, false %d, unverified %d)\n",
		ok, failed,
		len(byVerdict[model.VerdictTrue]),
		len(byVerdict[model.VerdictFalse]),
		len(byVerdict[model.VerdictUnverified]))

	if failed > 0 && ok == 0 {
		return fmt.Errorf("all %d checks failed", failed)
	}
	return nil
}
