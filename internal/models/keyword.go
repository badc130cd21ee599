package models

import (
	"time"

	"github.com/google/uuid"
)

// Intent classifies the purpose behind a search.
type Intent string

// Intent values. Only the first three are produced by analysis; uploads may carry any.
const (
	IntentInformational Intent = "informational"
	IntentTransactional Intent = "transactional"
	IntentNavigational  Intent = "navigational"
	IntentCommercial    Intent = "commercial"
	IntentUnknown       Intent = "unknown"
)

// AnalysisIntents are the intents an analysis may assign.
var AnalysisIntents = []Intent{IntentInformational, IntentTransactional, IntentNavigational}

// ParseIntent maps a raw value onto a known intent. The second return is false when
// the value is not one of the enumerated intents.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentInformational, IntentTransactional, IntentNavigational, IntentCommercial, IntentUnknown:
		return Intent(s), true
	}
	return "", false
}

// IsAnalysisIntent reports whether i is one of AnalysisIntents.
func (i Intent) IsAnalysisIntent() bool {
	for _, a := range AnalysisIntents {
		if a == i {
			return true
		}
	}
	return false
}

// KeywordRecord is a persisted keyword row. Every numeric field is nullable:
// a nil pointer means the source had no usable value, which is distinct from zero.
type KeywordRecord struct {
	ID                uuid.UUID  `json:"id"`
	Keyword           string     `json:"keyword"`
	Intent            *Intent    `json:"intent"`
	Position          *int64     `json:"position"`
	PreviousPosition  *int64     `json:"previous_position"`
	Traffic           *int64     `json:"traffic"`
	TrafficPercentage *float64   `json:"traffic_percentage"`
	Volume            *int64     `json:"volume"`
	KeywordDifficulty *int64     `json:"kd"`  // 0-100
	CPC               *float64   `json:"cpc"` // >= 0
	URL               *string    `json:"url"`
	Competition       *float64   `json:"competition"` // 0.0-1.0
	NumberOfResults   *int64     `json:"number_of_results"`
	PositionType      *string    `json:"position_type"`
	UserID            *uuid.UUID `json:"user_id"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AnalysisResult is the fused output of the enrichment pipeline for one keyword.
type AnalysisResult struct {
	Keyword    string `json:"keyword" yaml:"keyword"`
	Volume     int64  `json:"volume" yaml:"volume"`
	Difficulty int    `json:"difficulty" yaml:"difficulty"`
	Intent     Intent `json:"intent" yaml:"intent"`
	// VolumeSource is "search_console" when the volume is measured, "estimate" otherwise.
	VolumeSource string `json:"volume_source" yaml:"volume_source"`
}

// Volume sources for AnalysisResult.
const (
	VolumeSourceSearchConsole = "search_console"
	VolumeSourceEstimate      = "estimate"
)

// ToRecord converts an analysis result into a storable keyword row.
func (r AnalysisResult) ToRecord() KeywordRecord {
	volume := r.Volume
	kd := int64(r.Difficulty)
	rec := KeywordRecord{
		Keyword:           r.Keyword,
		Volume:            &volume,
		KeywordDifficulty: &kd,
	}
	if r.Intent != "" {
		intent := r.Intent
		rec.Intent = &intent
	}
	return rec
}
