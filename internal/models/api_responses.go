package models

// KeywordPage is one page of stored keyword rows.
type KeywordPage struct {
	Keywords []KeywordRecord `json:"keywords"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// TotalPages returns the number of pages needed for Total rows.
func (p KeywordPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// ImportResponse reports the outcome of a bulk keyword import.
type ImportResponse struct {
	Inserted int `json:"inserted" yaml:"inserted"`
	Skipped  int `json:"skipped" yaml:"skipped"`
}

// BatchSummary aggregates a batch of analysis results.
type BatchSummary struct {
	TotalKeywords int     `json:"total_keywords" yaml:"total_keywords"`
	Succeeded     int     `json:"succeeded" yaml:"succeeded"`
	Failed        int     `json:"failed" yaml:"failed"`
	AvgVolume     float64 `json:"avg_volume" yaml:"avg_volume"`
	AvgDifficulty float64 `json:"avg_difficulty" yaml:"avg_difficulty"`
}

// Summarize computes totals and averages over the given results.
func Summarize(total int, results []AnalysisResult) BatchSummary {
	s := BatchSummary{TotalKeywords: total, Succeeded: len(results), Failed: total - len(results)}
	if len(results) == 0 {
		return s
	}
	var vol, diff float64
	for _, r := range results {
		vol += float64(r.Volume)
		diff += float64(r.Difficulty)
	}
	s.AvgVolume = vol / float64(len(results))
	s.AvgDifficulty = diff / float64(len(results))
	return s
}
