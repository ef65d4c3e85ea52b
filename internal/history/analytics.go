package history

import "github.com/ppiankov/factstrip/internal/model"

// ComputeAnalytics counts verdicts over entries from scratch.
// Anything that is not exactly "true" or "false" (case-insensitive),
// including an empty verdict, counts as unverified.
func ComputeAnalytics(entries []model.HistoryEntry) model.Analytics {
	a := model.Analytics{TotalChecks: len(entries)}
	for _, e := range entries {
		switch e.Verdict.Bucket() {
		case model.VerdictTrue:
			a.TrueCount++
		case model.VerdictFalse:
			a.FalseCount++
		default:
			a.UnverifiedCount++
		}
	}
	return a
}
