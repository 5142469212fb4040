package domain

import "time"

// RecordKind tells which schema an AnalysisRecord carries.
type RecordKind string

const (
	// KindAnalysis records come from a successful remote call and carry
	// ExecutiveSummary / ActionPoint.
	KindAnalysis RecordKind = "analysis"
	// KindFallback records are synthesized locally and carry Topic / Summary / Hashtags.
	KindFallback RecordKind = "fallback"
	// KindError records replace an item whose analysis failed permanently.
	KindError RecordKind = "error"
)

// AnalysisRecord is the enrichment result for one post identifier.
//
// The remote schema (executive_summary, action_point) and the local schema
// (topic, summary, hashtags) are kept side by side; Kind says which one is set.
type AnalysisRecord struct {
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	CapturedAt time.Time  `json:"captured_at"`
	Kind       RecordKind `json:"kind"`

	ExecutiveSummary string  `json:"executive_summary,omitempty"`
	ActionPoint      *string `json:"action_point"`

	Topic    string   `json:"topic,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`

	Error string `json:"error,omitempty"`
}

// Headline returns the most descriptive text the record has.
func (r AnalysisRecord) Headline() string {
	switch {
	case r.ExecutiveSummary != "":
		return r.ExecutiveSummary
	case r.Summary != "":
		return r.Summary
	default:
		return r.Topic
	}
}

// Usage aggregates the persisted counters.
type Usage struct {
	TotalAnalyzed int64 `json:"total_analyzed"`
	TotalExports  int64 `json:"total_exports"`
}
