package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/factstrip/internal/model"
)

// Checker runs one verification that does not compete with other requests
type Checker interface {
	CheckDetached(ctx context.Context, statement string, style model.Style) (*model.VerificationResult, error)
}

// CheckJob verifies one statement of a batch
type CheckJob struct {
	Index     int
	Statement string
	Style     model.Style
	Checker   Checker
}

// Execute executes the check job
func (j *CheckJob) Execute(ctx context.Context) Result {
	res, err := j.Checker.CheckDetached(ctx, j.Statement, j.Style)
	return &CheckResult{
		Index:     j.Index,
		Statement: j.Statement,
		Result:    res,
		Error:     err,
	}
}

// CheckResult is the outcome of one CheckJob
type CheckResult struct {
	Index     int
	Statement string
	Result    *model.VerificationResult
	Error     error
}

// GetError returns the error from the check
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many statements concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// Process checks every statement and returns the results in input order.
// Statements never started because ctx ended are reported with ctx's error.
func (b *BatchProcessor) Process(ctx context.Context, statements []string, style model.Style) []*CheckResult {
	if len(statements) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, s := range statements {
		if !pool.Submit(&CheckJob{Index: i, Statement: s, Style: style, Checker: b.checker}) {
			break
		}
	}

	out := make([]*CheckResult, len(statements))
	for _, r := range pool.Wait() {
		cr := r.(*CheckResult)
		out[cr.Index] = cr
	}
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &CheckResult{Index: i, Statement: statements[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads statements from a file and checks them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, style model.Style) ([]*CheckResult, error) {
	statements, err := ReadStatementsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	return b.Process(ctx, statements, style), nil
}

// ReadStatementsFromFile reads statements from a file (one per line)
func ReadStatementsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadStatements(file)
}

// ReadStatements reads one statement per line, skipping blanks, # comments
// and repeats.
func ReadStatements(r io.Reader) ([]string, error) {
	var statements []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			statements = append(statements, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return statements, nil
}

// Summary counts successes and failures of a batch
func Summary(results []*CheckResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// ByVerdict groups successful results by verdict bucket
func ByVerdict(results []*CheckResult) map[model.Verdict][]*CheckResult {
	out := make(map[model.Verdict][]*CheckResult)
	for _, r := range results {
		if r.Error != nil || r.Result == nil {
			continue
		}
		b := r.Result.Verdict.Bucket()
		out[b] = append(out[b], r)
	}
	for _, rs := range out {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Index < rs[j].Index })
	}
	return out
}
