package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/factstrip/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult prints one result the way the result card shows it
func renderResult(w io.Writer, r model.VerificationResult) {
	fmt.Fprintf(w, "Statement:  %s\n", r.Statement)
	fmt.Fprintf(w, "Verdict:    %s\n", verdictLabel(r.Verdict))
	if r.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %d%%\n", *r.Confidence)
	}
	if r.Mood != nil {
		if r.MoodConfidence != nil {
			fmt.Fprintf(w, "Mood:       %s (%d%%)\n", *r.Mood, *r.MoodConfidence)
		} else {
			fmt.Fprintf(w, "Mood:       %s\n", *r.Mood)
		}
	}
	fmt.Fprintf(w, "Style:      %s\n", r.Style)
	if r.Description != nil {
		fmt.Fprintf(w, "\n%s\n", *r.Description)
	}
	if r.ImageRef != nil {
		fmt.Fprintf(w, "\nComic: %s\n", imageLabel(*r.ImageRef))
	}
	if r.Explanation != nil {
		fmt.Fprintln(w)
		for i, step := range r.Explanation.Steps() {
			if step != "" {
				fmt.Fprintf(w, "  %d. %s\n", i+1, step)
			}
		}
	}
	fmt.Fprintf(w, "\nID: %s  (%s)\n", r.ID, r.Timestamp.Local().Format(time.DateTime))
}

// renderHistory prints one line per entry, newest first
func renderHistory(w io.Writer, entries []model.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No checks yet.")
		return
	}
	for _, e := range entries {
		conf := "  - "
		if e.Confidence != nil {
			conf = fmt.Sprintf("%3d%%", *e.Confidence)
		}
		fmt.Fprintf(w, "%-36s  %-10s %s  %s\n", e.ID, verdictLabel(e.Verdict), conf, truncate(e.Statement, 60))
	}
}

func renderAnalytics(w io.Writer, a model.Analytics) {
	fmt.Fprintf(w, "Total checks: %d\n", a.TotalChecks)
	fmt.Fprintf(w, "True:         %d\n", a.TrueCount)
	fmt.Fprintf(w, "False:        %d\n", a.FalseCount)
	fmt.Fprintf(w, "Unverified:   %d\n", a.UnverifiedCount)
}

func verdictLabel(v model.Verdict) string {
	return strings.ToUpper(string(v.Bucket()))
}

// imageLabel keeps data URIs from flooding the terminal
func imageLabel(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		mime, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ";")
		return fmt.Sprintf("inline %s (%d bytes)", mime, len(ref))
	}
	return ref
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
