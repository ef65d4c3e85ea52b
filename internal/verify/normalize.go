package verify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/factstrip/internal/model"
)

// Field aliases, newest backend name first
var (
	idKeys             = []string{"id"}
	timestampKeys      = []string{"timestamp"}
	verdictKeys        = []string{"verdict"}
	confidenceKeys     = []string{"confidence"}
	descriptionKeys    = []string{"description"}
	moodKeys           = []string{"mood"}
	moodConfidenceKeys = []string{"moodConfidence", "mood_confidence"}
	imageKeys          = []string{"comicImage", "comic_url"}
	explanationKeys    = []string{"explanation"}
	styleKeys          = []string{"style"}
)

// Normalize turns a decoded backend payload into a VerificationResult.
//
// It is the only place that looks at the untyped payload. Each logical field
// takes the first alias holding a usable value; anything missing or of the
// wrong shape becomes nil. id and timestamp are synthesized when absent.
func Normalize(raw map[string]any, req model.VerificationRequest, now time.Time, newID func() string) model.VerificationResult {
	res := model.VerificationResult{
		Statement: req.Statement,
		Style:     req.Style,
	}

	if v, ok := lookup(raw, idKeys); ok {
		if id, ok := asID(v); ok {
			res.ID = model.EntryID(id)
		}
	}
	if res.ID == "" {
		res.ID = model.EntryID(newID())
	}

	res.Timestamp = now.UTC()
	if v, ok := lookup(raw, timestampKeys); ok {
		if ts, ok := asTime(v); ok {
			res.Timestamp = ts
		}
	}

	if v, ok := lookup(raw, verdictKeys); ok {
		res.Verdict = asVerdict(v)
	}
	if v, ok := lookup(raw, confidenceKeys); ok {
		res.Confidence = asPercent(v)
	}
	if v, ok := lookup(raw, descriptionKeys); ok {
		res.Description = asString(v)
	}
	if v, ok := lookup(raw, moodKeys); ok {
		res.Mood = asString(v)
	}
	if v, ok := lookup(raw, moodConfidenceKeys); ok {
		res.MoodConfidence = asPercent(v)
	}
	if v, ok := lookup(raw, imageKeys); ok {
		res.ImageRef = asString(v)
	}
	if v, ok := lookup(raw, explanationKeys); ok {
		res.Explanation = asExplanation(v)
	}
	if v, ok := lookup(raw, styleKeys); ok {
		if s := asString(v); s != nil {
			if style, err := model.ParseStyle(*s); err == nil {
				res.Style = style
			}
		}
	}

	return res
}

// lookup returns the first non-null value among keys
func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func asString(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return &s
	case json.Number:
		s := t.String()
		return &s
	case float64, bool:
		s := fmt.Sprint(t)
		return &s
	}
	return nil
}

func asVerdict(v any) model.Verdict {
	return model.ParseVerdict(v)
}

// asPercent reads 95, 95.4, "95" or "95%" as an integer clamped to [0,100]
func asPercent(v any) *int {
	return model.ParsePercent(v)
}

func asID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), strings.TrimSpace(t) != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// asTime accepts RFC 3339 strings and unix milliseconds
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	}
	return time.Time{}, false
}

var stepKeys = [4]string{"step1", "step2", "step3", "step4"}

// asExplanation reads {"step1".."step4"} or a list of up to four strings
func asExplanation(v any) *model.Explanation {
	var steps [4]string
	switch t := v.(type) {
	case map[string]any:
		for i, k := range stepKeys {
			if s := asString(t[k]); s != nil {
				steps[i] = *s
			}
		}
	case []any:
		for i := 0; i < len(t) && i < len(steps); i++ {
			if s := asString(t[i]); s != nil {
				steps[i] = *s
			}
		}
	default:
		return nil
	}

	if steps == [4]string{} {
		return nil
	}
	return &model.Explanation{Step1: steps[0], Step2: steps[1], Step3: steps[2], Step4: steps[3]}
}
