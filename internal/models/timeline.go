// internal/models/timeline.go
package models

// TimelineEvent is one point on a story's chronology. It may reference
// characters and a location that already exist in the codex.
type TimelineEvent struct {
	ID           int    `json:"id"`
	StoryID      int    `json:"story_id"`
	Title        string `json:"title"`
	Date         string `json:"date,omitempty"` // free-form or ISO date
	SortOrder    int    `json:"sort_order"`
	Summary      string `json:"summary,omitempty"`
	LocationID   int    `json:"location_id,omitempty"`
	CharacterIDs []int  `json:"characters,omitempty"`
}
