// internal/models/character.go
package models

import "time"

// Character is a cast member of a story. The field set follows the fullest
// revision of the character sheet: identity, descriptions, and the motor
// fields (motivation, goal, flaw, arc) that drive the character.
type Character struct {
	ID      int    `json:"id"`
	StoryID int    `json:"story_id"`
	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Role    string `json:"role,omitempty"` // protagonist, antagonist, secondary...
	Age     int    `json:"age,omitempty"`
	Born    string `json:"born,omitempty"` // free-form or ISO date, used for timeline checks

	PhysicalDescription string `json:"physical_description,omitempty"`
	Personality         string `json:"personality,omitempty"`
	History             string `json:"history,omitempty"`

	Motivation   string `json:"motivation,omitempty"`
	Goal         string `json:"goal,omitempty"`
	Flaw         string `json:"flaw,omitempty"`
	CharacterArc string `json:"character_arc,omitempty"`

	Skills string `json:"skills,omitempty"`
	Notes  string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FullName joins name and surname for display and matching.
func (c *Character) FullName() string {
	if c.Surname == "" {
		return c.Name
	}
	return c.Name + " " + c.Surname
}
