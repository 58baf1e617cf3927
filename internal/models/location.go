// internal/models/location.go
package models

// Location is a place of the story world: a city, a planet, a building.
type Location struct {
	ID      int    `json:"id"`
	StoryID int    `json:"story_id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"` // city, region, planet, building...
	Summary string `json:"summary,omitempty"`
}
