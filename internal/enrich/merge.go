// Package enrich fuses measured search volume with model estimates into
// analysis results, one keyword at a time or as a bounded concurrent batch.
package enrich

import (
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
)

// Merge combines a measured volume with a model estimate. A positive measured
// volume wins; otherwise the estimate's volume is used. Difficulty and intent
// always come from the estimate.
func Merge(keyword string, measured searchvolume.Volume, est estimate.Estimate) models.AnalysisResult {
	res := models.AnalysisResult{
		Keyword:      keyword,
		Volume:       max(est.Volume, 0),
		Difficulty:   min(max(est.Difficulty, 0), estimate.MaxDifficulty),
		Intent:       est.Intent,
		VolumeSource: models.VolumeSourceEstimate,
	}
	if measured.Count > 0 {
		res.Volume = measured.Count
		res.VolumeSource = models.VolumeSourceSearchConsole
	}
	return res
}
