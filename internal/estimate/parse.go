package estimate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// Fallback bounds.
const (
	MaxFallbackVolume = 10000
	MaxDifficulty     = 100
)

var (
	// ErrNoJSON is returned by ExtractJSON when the text holds no {...} span.
	ErrNoJSON = errors.New("no JSON object in completion")
	// ErrShape is returned by ParseEstimate when the object lacks a required field
	// or carries a value of the wrong kind.
	ErrShape = errors.New("completion JSON has unexpected shape")
)

// ExtractJSON returns the substring from the first '{' to the last '}' of text.
// Models often wrap the object in prose or code fences; anything outside that
// span is discarded. The result is not guaranteed to be valid JSON.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// number accepts a JSON number or a string holding one.
type number struct {
	set bool
	val float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(unq), ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %s is not a number", ErrShape, b)
	}
	n.set, n.val = true, f
	return nil
}

type rawEstimate struct {
	Volume     number `json:"volume"`
	Difficulty number `json:"difficulty"`
	Intent     string `json:"intent"`
}

// ParseEstimate extracts and validates an estimate from free-form completion
// text. Out-of-range numbers are clamped; a missing field or an intent outside
// the analysis intents is an error.
func ParseEstimate(text string) (Estimate, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return Estimate{}, err
	}

	var raw rawEstimate
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if !raw.Volume.set || !raw.Difficulty.set {
		return Estimate{}, fmt.Errorf("%w: volume and difficulty are required", ErrShape)
	}

	intent := models.Intent(strings.ToLower(strings.TrimSpace(raw.Intent)))
	if !intent.IsAnalysisIntent() {
		return Estimate{}, fmt.Errorf("%w: intent %q", ErrShape, raw.Intent)
	}

	return Estimate{
		Volume:     int64(math.Round(math.Max(raw.Volume.val, 0))),
		Difficulty: int(math.Round(math.Min(math.Max(raw.Difficulty.val, 0), MaxDifficulty))),
		Intent:     intent,
		Source:     SourceModel,
	}, nil
}

// Fallback draws a random estimate: volume in [0, MaxFallbackVolume),
// difficulty in [0, MaxDifficulty] and a uniformly chosen analysis intent.
// A nil r uses the global source.
func Fallback(r *rand.Rand) Estimate {
	intn := rand.IntN
	if r != nil {
		intn = r.IntN
	}
	return Estimate{
		Volume:     int64(intn(MaxFallbackVolume)),
		Difficulty: intn(MaxDifficulty + 1),
		Intent:     models.AnalysisIntents[intn(len(models.AnalysisIntents))],
		Source:     SourceFallback,
	}
}
