// internal/models/analysis.go
package models

// AnalysisMode selects how deep the manuscript analysis goes.
type AnalysisMode string

const (
	AnalysisFast     AnalysisMode = "fast"
	AnalysisDetailed AnalysisMode = "detailed"
)

// Entity is one named entity found in the manuscript text.
type Entity struct {
	Text     string `json:"text"`
	Label    string `json:"label"` // PER, LOC, MISC
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Sentence string `json:"sentence,omitempty"`
}

// Mention records a known codex character found in the manuscript.
type Mention struct {
	CharacterID int    `json:"character_id"`
	Name        string `json:"name"`
}

// TimelineConflict flags an event a mentioned character cannot take part in.
type TimelineConflict struct {
	EventID     int    `json:"event_id"`
	CharacterID int    `json:"character_id"`
	Reason      string `json:"reason"`
	EventDate   string `json:"event_date,omitempty"`
	Born        string `json:"born,omitempty"`
}

// SentenceBreakdown is the per-sentence view added in detailed mode.
// Entity offsets are relative to the sentence start.
type SentenceBreakdown struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// AnalysisReport is the full result of analyzing one chapter.
type AnalysisReport struct {
	ChapterID  int                 `json:"id"`
	Title      string              `json:"title"`
	Chapter    int                 `json:"chapter"`
	Mode       AnalysisMode        `json:"mode"`
	Status     ChapterStatus       `json:"status"`
	TextLength int                 `json:"text_length"`
	Entities   []Entity            `json:"entities"`
	Mentions   []Mention           `json:"mentions,omitempty"`
	Conflicts  []TimelineConflict  `json:"conflicts,omitempty"`
	Sentences  []SentenceBreakdown `json:"sentences,omitempty"`
}

// LinkSuggestion pairs two characters the suggester believes are related.
type LinkSuggestion struct {
	Type   string `json:"type"` // family, peer
	Pair   [2]int `json:"pair"`
	Reason string `json:"reason"`
}
