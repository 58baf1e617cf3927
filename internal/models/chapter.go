// internal/models/chapter.go
package models

import "time"

// ChapterStatus is a purely descriptive label on a manuscript chapter.
type ChapterStatus string

const (
	StatusDraft      ChapterStatus = "Draft"
	StatusInProgress ChapterStatus = "In Progress"
	StatusRevision   ChapterStatus = "Revision"
	StatusDone       ChapterStatus = "Done"
)

// Chapter is one manuscript unit of a story. The body is plain Markdown.
// A zero ID means the chapter has never been persisted.
type Chapter struct {
	ID        int           `json:"id,omitempty"`
	StoryID   int           `json:"story_id"`
	Title     string        `json:"title"`
	Number    int           `json:"chapter"` // ordering key within the story, unique by convention
	Text      string        `json:"text"`
	Status    ChapterStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// Persisted reports whether the chapter has a server-assigned identifier.
func (c *Chapter) Persisted() bool {
	return c.ID != 0
}
