// internal/models/extraction.go
package models

// EntityType names one of the four extractable collections.
type EntityType string

const (
	EntityCharacters EntityType = "characters"
	EntityLocations  EntityType = "locations"
	EntityTimeline   EntityType = "timeline"
	EntityLore       EntityType = "lore"
)

// AllEntityTypes lists the collections in commit order: characters and
// locations first, timeline last because its events may reference them.
var AllEntityTypes = []EntityType{EntityCharacters, EntityLocations, EntityLore, EntityTimeline}

// ExtractionRequest asks the extraction engine to analyze one manuscript.
type ExtractionRequest struct {
	ManuscriptID int          `json:"manuscript_id"`
	ExtractTypes []EntityType `json:"extract_types"`
}

// ExtractedCharacter is an AI-proposed character, pending user review.
type ExtractedCharacter struct {
	Name                string  `json:"name"`
	Surname             string  `json:"surname,omitempty"`
	Role                string  `json:"role,omitempty"`
	Age                 int     `json:"age,omitempty"`
	PhysicalDescription string  `json:"physical_description,omitempty"`
	Personality         string  `json:"personality,omitempty"`
	Motivation          string  `json:"motivation,omitempty"`
	Confidence          float64 `json:"confidence"`
}

// ExtractedLocation is an AI-proposed location.
type ExtractedLocation struct {
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEvent is an AI-proposed timeline event. Characters and the
// location are carried by name; they are resolved to IDs at creation time.
type ExtractedEvent struct {
	Title          string   `json:"title"`
	Date           string   `json:"date,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	SortOrder      int      `json:"sort_order"`
	CharacterNames []string `json:"character_names,omitempty"`
	LocationName   string   `json:"location_name,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// ExtractedLore is an AI-proposed lore entry.
type ExtractedLore struct {
	Title      string  `json:"title"`
	Category   string  `json:"category,omitempty"`
	Content    string  `json:"content,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the full batch returned by one extraction call.
type ExtractionResult struct {
	Characters []ExtractedCharacter `json:"characters"`
	Locations  []ExtractedLocation  `json:"locations"`
	Timeline   []ExtractedEvent     `json:"timeline"`
	Lore       []ExtractedLore      `json:"lore"`
	// RawResponse keeps the unparsed model output when decoding failed.
	RawResponse string `json:"raw_response,omitempty"`
}

// Count returns the number of proposed items in one collection.
func (r *ExtractionResult) Count(t EntityType) int {
	switch t {
	case EntityCharacters:
		return len(r.Characters)
	case EntityLocations:
		return len(r.Locations)
	case EntityTimeline:
		return len(r.Timeline)
	case EntityLore:
		return len(r.Lore)
	}
	return 0
}

// ValidationRequest turns one approved proposal into a persisted entity.
type ValidationRequest struct {
	StoryID  int            `json:"story_id"`
	ItemType string         `json:"item_type"` // "character", "location", "timeline", "lore"
	ItemData map[string]any `json:"item_data"`
	Approved bool           `json:"approved"`
}

// BatchValidationReport summarizes one batch of validate-and-create calls.
type BatchValidationReport struct {
	Total      int             `json:"total"`
	Approved   int             `json:"approved"`
	Rejected   int             `json:"rejected"`
	Duplicates int             `json:"duplicates"`
	Errors     int             `json:"errors"`
	Results    []CreatedEntity `json:"results"`
}

// CreatedEntity reports the outcome of one validate-and-create call.
type CreatedEntity struct {
	Status   string         `json:"status"` // created, duplicate, rejected
	ItemType string         `json:"item_type,omitempty"`
	ID       int            `json:"id,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
