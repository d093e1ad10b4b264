package entity

const (
	AnalysisSourceModel    = "model"
	AnalysisSourceFallback = "fallback"
)

// AnalysisRequest payload handed to the analysis collaborator.
// Captures are summarized, never forwarded raw.
type AnalysisRequest struct {
	Evidence []*LogFileEntry
	Capture  *CaptureMetadata
	Totals   FileTotals
}

// AnalysisReport the documented issue/timeline/recommendation schema
type AnalysisReport struct {
	Source          string           `json:"source" mapstructure:"-"`
	Severity        string           `json:"severity" mapstructure:"severity"`
	Issues          []*Issue         `json:"issues" mapstructure:"issues"`
	Timeline        []*TimelineEvent `json:"timeline,omitempty" mapstructure:"timeline"`
	Recommendations []string         `json:"recommendations,omitempty" mapstructure:"recommendations"`
}

type Issue struct {
	Summary  string `json:"summary" mapstructure:"summary"`
	Evidence string `json:"evidence,omitempty" mapstructure:"evidence"`
	Severity string `json:"severity,omitempty" mapstructure:"severity"`
}

type TimelineEvent struct {
	At    string `json:"at" mapstructure:"at"`
	Event string `json:"event" mapstructure:"event"`
}
