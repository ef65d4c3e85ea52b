package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Style selects the comic rendering style the backend should use
type Style string

const (
	StyleAnime     Style = "anime/manga"
	StyleNewspaper Style = "newspaper"
	StyleNormal    Style = "normal"
)

// DefaultStyle is used when the caller does not pick one
const DefaultStyle = StyleNormal

// Styles lists every style the backend understands
func Styles() []Style {
	return []Style{StyleAnime, StyleNewspaper, StyleNormal}
}

// ParseStyle maps user input to a Style. The empty string yields DefaultStyle.
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultStyle, nil
	}
	switch Style(s) {
	case StyleAnime, StyleNewspaper, StyleNormal:
		return Style(s), nil
	case "anime", "manga":
		return StyleAnime, nil
	}
	return "", fmt.Errorf("unknown style %q (supported: anime/manga, newspaper, normal)", s)
}

// Verdict is the backend's classification of a statement, lowercased and
// trimmed at the trust boundary. Empty means the backend sent none and
// serializes as null.
type Verdict string

// Verdict buckets used for analytics
const (
	VerdictTrue       Verdict = "true"
	VerdictFalse      Verdict = "false"
	VerdictUnverified Verdict = "unverified"
)

// Bucket maps any verdict onto true, false or unverified.
// Only an exact case-insensitive "true" or "false" counts as decided.
func (v Verdict) Bucket() Verdict {
	switch Verdict(strings.ToLower(string(v))) {
	case VerdictTrue:
		return VerdictTrue
	case VerdictFalse:
		return VerdictFalse
	default:
		return VerdictUnverified
	}
}

// ParseVerdict reads a string or boolean verdict. Anything else is absent.
func ParseVerdict(v any) Verdict {
	switch t := v.(type) {
	case bool:
		if t {
			return VerdictTrue
		}
		return VerdictFalse
	case string:
		return Verdict(strings.ToLower(strings.TrimSpace(t)))
	}
	return ""
}

// MarshalJSON writes an absent verdict as null, like every other optional field
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

// UnmarshalJSON accepts "true", true or null
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	*v = ParseVerdict(raw)
	return nil
}

// ParsePercent reads 95, 95.4, "95" or "95%" as an integer clamped to
// [0,100]. Anything else, including NaN and infinities, yields nil.
func ParsePercent(v any) *int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	// clamp before converting: an out-of-range float has no defined int value
	f = math.Max(0, math.Min(100, f))
	n := int(math.Round(f))
	return &n
}

// VerificationRequest is what gets sent to the verification backend
type VerificationRequest struct {
	Statement string `json:"statement"`
	Style     Style  `json:"style"`
}

// Explanation is the four-step walkthrough shown next to a verdict
type Explanation struct {
	Step1 string `json:"step1"`
	Step2 string `json:"step2"`
	Step3 string `json:"step3"`
	Step4 string `json:"step4"`
}

// Steps returns the steps in display order
func (e Explanation) Steps() []string {
	return []string{e.Step1, e.Step2, e.Step3, e.Step4}
}

// EntryID identifies a verification result for its whole lifetime.
// Older browser clients stored numeric ids, so it also decodes from a JSON number.
type EntryID string

// UnmarshalJSON accepts both "abc" and 1712345678901
func (id *EntryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EntryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("entry id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("entry id: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// VerificationResult is one successfully completed verification.
// Nil pointers mean the backend did not supply the field.
type VerificationResult struct {
	ID             EntryID      `json:"id"`
	Timestamp      time.Time    `json:"timestamp"`
	Statement      string       `json:"statement"`
	Verdict        Verdict      `json:"verdict"`
	Confidence     *int         `json:"confidence"`     // 0-100
	Description    *string      `json:"description"`
	Mood           *string      `json:"mood"`
	MoodConfidence *int         `json:"moodConfidence"` // 0-100
	ImageRef       *string      `json:"comicImage"`     // URI or data URI
	Style          Style        `json:"style"`
	Explanation    *Explanation `json:"explanation"`
}

// HistoryEntry is the durable projection of a VerificationResult.
// It keeps every field, nulls included, so the persisted record is self-describing.
type HistoryEntry VerificationResult

// NewHistoryEntry copies a result into a history entry.
// Pointer fields are cloned so later edits to the result cannot leak in.
func NewHistoryEntry(r VerificationResult) HistoryEntry {
	e := HistoryEntry(r)
	e.Confidence = cloneInt(r.Confidence)
	e.MoodConfidence = cloneInt(r.MoodConfidence)
	e.Description = cloneString(r.Description)
	e.Mood = cloneString(r.Mood)
	e.ImageRef = cloneString(r.ImageRef)
	if r.Explanation != nil {
		ex := *r.Explanation
		e.Explanation = &ex
	}
	return e
}

// UnmarshalJSON decodes a persisted entry. Percent fields go through
// ParsePercent so records whose backend sent 87.5 or "75" still load.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	type plain HistoryEntry
	aux := struct {
		*plain
		Confidence     json.RawMessage `json:"confidence"`
		MoodConfidence json.RawMessage `json:"moodConfidence"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Confidence = percentFromJSON(aux.Confidence)
	e.MoodConfidence = percentFromJSON(aux.MoodConfidence)
	return nil
}

func percentFromJSON(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return ParsePercent(v)
}

// WithExplanation returns a copy of the entry carrying a new explanation
func (e HistoryEntry) WithExplanation(ex Explanation) HistoryEntry {
	e.Explanation = &ex
	return e
}

// Result converts the entry back to the result shape presentation consumes
func (e HistoryEntry) Result() VerificationResult {
	return VerificationResult(e)
}

// Analytics are summary counters derived from the retained history
type Analytics struct {
	TotalChecks     int `json:"totalChecks"`
	TrueCount       int `json:"trueCount"`
	FalseCount      int `json:"falseCount"`
	UnverifiedCount int `json:"unverifiedCount"`
}

// IntPtr is a small helper for optional integer fields
func IntPtr(v int) *int { return &v }

// StringPtr is a small helper for optional string fields
func StringPtr(v string) *string { return &v }

// StringValue dereferences s, returning "" for nil
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
