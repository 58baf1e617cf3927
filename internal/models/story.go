// internal/models/story.go
package models

// Story is the root aggregate: every other record belongs to exactly one story.
type Story struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Synopsis string `json:"synopsis,omitempty"`
	Blurb    string `json:"blurb,omitempty"`
}
