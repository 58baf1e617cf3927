// internal/models/lore.go
package models

// LoreEntry is a world-building note: a magic system, a faction, a war.
type LoreEntry struct {
	ID       int    `json:"id"`
	StoryID  int    `json:"story_id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"` // magic, faction, history, technology, culture...
	Content  string `json:"content,omitempty"`
}
