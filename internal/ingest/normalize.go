// Package ingest turns uploaded spreadsheet rows and pasted keyword lists into
// canonical keyword records.
package ingest

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/validation"
)

// Row is one raw table row keyed by its column header.
type Row map[string]any

// NormalizeResult holds the records that survived normalization.
type NormalizeResult struct {
	Records []models.KeywordRecord
	Skipped int
}

type field int

const (
	fieldUnknown field = iota
	fieldKeyword
	fieldIntent
	fieldPosition
	fieldPreviousPosition
	fieldTraffic
	fieldTrafficPercentage
	fieldVolume
	fieldKD
	fieldCPC
	fieldURL
	fieldCompetition
	fieldNumberOfResults
	fieldPositionType
)

// columnAliases maps canonical header names to record fields. The first entry
// of each group is the column name stored in the database.
var columnAliases = map[string]field{
	"keyword":     fieldKeyword,
	"keywords":    fieldKeyword,
	"query":       fieldKeyword,
	"search_term": fieldKeyword,

	"intent":          fieldIntent,
	"intents":         fieldIntent,
	"keyword_intent":  fieldIntent,
	"keyword_intents": fieldIntent,
	"search_intent":   fieldIntent,

	"position": fieldPosition,
	"rank":     fieldPosition,

	"previous_position": fieldPreviousPosition,
	"previousposition":  fieldPreviousPosition,
	"prev_position":     fieldPreviousPosition,

	"traffic": fieldTraffic,

	"traffic_percentage": fieldTrafficPercentage,
	"trafficpercentage":  fieldTrafficPercentage,
	"traffic_percent":    fieldTrafficPercentage,

	"volume":         fieldVolume,
	"search_volume":  fieldVolume,
	"searchvolume":   fieldVolume,
	"monthly_volume": fieldVolume,

	"kd":                 fieldKD,
	"kd_percentage":      fieldKD,
	"keyword_difficulty": fieldKD,
	"keyworddifficulty":  fieldKD,
	"difficulty":         fieldKD,

	"cpc":     fieldCPC,
	"cpc_usd": fieldCPC,

	"url": fieldURL,

	"competition": fieldCompetition,

	"number_of_results": fieldNumberOfResults,
	"numberofresults":   fieldNumberOfResults,

	"position_type": fieldPositionType,
	"positiontype":  fieldPositionType,
}

var (
	nonAlnumRun    = regexp.MustCompile(`[^a-z0-9]+`)
	thousandsGroup = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	spaceRun       = regexp.MustCompile(`[\s\p{Z}\p{Cc}]+`)
)

// fold case-folds s. Casers are stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// CanonicalColumn folds a raw header into the lookup form used by Normalize:
// case-folded, "%" spelled out, and runs of punctuation or spaces collapsed to "_".
func CanonicalColumn(header string) string {
	h := fold(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "%", " percentage ")
	h = nonAlnumRun.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

func lookupField(header string) field {
	return columnAliases[CanonicalColumn(header)]
}

// Normalize maps raw rows onto keyword records. Rows whose keyword is empty after
// trimming are skipped; if no rows survive, ErrNoValidRows is returned. Empty input
// returns ErrNoData.
func Normalize(rows []Row) (*NormalizeResult, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	res := &NormalizeResult{Records: make([]models.KeywordRecord, 0, len(rows))}
	for _, row := range rows {
		rec := NormalizeRow(row)
		if rec.Keyword == "" {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return nil, ErrNoValidRows
	}
	return res, nil
}

// cleanKeyword folds runs of whitespace and control characters, such as the
// line breaks of a multi-line cell, into single spaces. Length is not capped.
func cleanKeyword(s string) string {
	return validation.NormalizeKeyword(spaceRun.ReplaceAllString(s, " "))
}

// NormalizeRow converts a single row. The returned record's Keyword may be empty.
func NormalizeRow(row Row) models.KeywordRecord {
	values := collect(row)

	var rec models.KeywordRecord
	rec.Keyword = cleanKeyword(toString(values[fieldKeyword]))

	rec.Intent = toIntent(values[fieldIntent])
	rec.Position = toInt(values[fieldPosition], 0, math.MaxInt64)
	rec.PreviousPosition = toInt(values[fieldPreviousPosition], 0, math.MaxInt64)
	rec.Traffic = toInt(values[fieldTraffic], 0, math.MaxInt64)
	rec.TrafficPercentage = toFloat(values[fieldTrafficPercentage], 0, 100)
	rec.Volume = toInt(values[fieldVolume], 0, math.MaxInt64)
	rec.KeywordDifficulty = toInt(values[fieldKD], 0, 100)
	rec.CPC = toFloat(values[fieldCPC], 0, math.MaxFloat64)
	rec.Competition = toFloat(values[fieldCompetition], 0, 1)
	rec.NumberOfResults = toInt(values[fieldNumberOfResults], 0, math.MaxInt64)
	rec.PositionType = toOptionalString(values[fieldPositionType])

	if u := toOptionalString(values[fieldURL]); u != nil {
		if ok, _ := validation.ValidateURL(*u); ok {
			rec.URL = u
		}
	}
	return rec
}

// collect resolves each column of the row to a field. Headers are visited in
// sorted order so that when two columns map to the same field the result is
// deterministic; the first non-empty value wins.
func collect(row Row) map[field]any {
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	values := make(map[field]any, len(headers))
	for _, h := range headers {
		f := lookupField(h)
		if f == fieldUnknown {
			continue
		}
		v := row[h]
		if isEmpty(v) {
			continue
		}
		if _, seen := values[f]; !seen {
			values[f] = v
		}
	}
	return values
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return math.IsNaN(t)
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func toOptionalString(v any) *string {
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}
	return &s
}

// parseNumber coerces a raw cell into a finite float. Thousands separators in the
// "1,234,567" form and a trailing percent sign are tolerated; anything else that
// strconv rejects is treated as garbage.
func parseNumber(v any) (float64, bool) {
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
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		if thousandsGroup.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(v any, lo, hi float64) *float64 {
	if v == nil {
		return nil
	}
	f, ok := parseNumber(v)
	if !ok || f < lo || f > hi {
		return nil
	}
	return &f
}

// toInt rounds fractional values half away from zero.
func toInt(v any, lo, hi int64) *int64 {
	if v == nil {
		return nil
	}
	f, ok := parseNumber(v)
	if !ok {
		return nil
	}
	r := math.Round(f)
	if r < float64(lo) || r > float64(hi) || r >= math.MaxInt64 {
		return nil
	}
	n := int64(r)
	return &n
}

var intentAbbreviations = map[string]models.Intent{
	"i": models.IntentInformational,
	"n": models.IntentNavigational,
	"c": models.IntentCommercial,
	"t": models.IntentTransactional,
}

// toIntent picks the first recognizable intent in a possibly multi-valued cell
// such as "commercial, informational". Unrecognized non-empty values map to unknown.
func toIntent(v any) *models.Intent {
	s := fold(strings.TrimSpace(toString(v)))
	if s == "" {
		return nil
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '|' || r == ' '
	})
	for _, tok := range tokens {
		if intent, ok := models.ParseIntent(tok); ok {
			return &intent
		}
		if intent, ok := intentAbbreviations[tok]; ok {
			return &intent
		}
	}
	unknown := models.IntentUnknown
	return &unknown
}
