// internal/models/writer.go
package models

// ChapterGenerationRequest asks the writing assistant for a full chapter
// draft. Only the summary is required; everything else has a default.
type ChapterGenerationRequest struct {
	StoryID       int    `json:"story_id"`
	ChapterNumber int    `json:"chapter_number,omitempty"`
	ChapterTitle  string `json:"chapter_title,omitempty"`
	Summary       string `json:"summary"`
	Style         string `json:"style,omitempty"`  // narrative, dialogue, descriptive, action
	Length        string `json:"length,omitempty"` // short, medium, long
	Tone          string `json:"tone,omitempty"`   // neutral, dramatic, humorous, dark, light
	POV           string `json:"pov,omitempty"`

	// Characters and locations the draft must feature, by codex ID.
	IncludeCharacters []int `json:"include_characters,omitempty"`
	IncludeLocations  []int `json:"include_locations,omitempty"`
}

// GeneratedChapter is one chapter draft produced by the assistant.
type GeneratedChapter struct {
	Text          string `json:"text"`
	ChapterNumber int    `json:"chapter_number,omitempty"`
	ChapterTitle  string `json:"chapter_title,omitempty"`
	WordCount     int    `json:"word_count"`
}

// ContinueWritingRequest asks for a continuation of an existing chapter.
type ContinueWritingRequest struct {
	ManuscriptID int    `json:"manuscript_id"`
	Direction    string `json:"direction"`
	Length       int    `json:"length,omitempty"` // approximate word count
}

// Continuation is the text to append to the chapter.
type Continuation struct {
	Text      string `json:"continuation"`
	WordCount int    `json:"word_count"`
}

// RewriteRequest asks for a rewrite of arbitrary text under an instruction.
type RewriteRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

// RewriteResult pairs the rewritten text with what it came from.
type RewriteResult struct {
	Original    string `json:"original"`
	Rewritten   string `json:"rewritten"`
	Instruction string `json:"instruction"`
}

// SceneSuggestionRequest asks for next-scene ideas given the current
// situation in the story.
type SceneSuggestionRequest struct {
	StoryID          int    `json:"story_id"`
	CurrentSituation string `json:"current_situation"`
}

// SceneSuggestion is one proposed scene.
type SceneSuggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Characters  []string `json:"characters,omitempty"`
	Impact      string   `json:"impact,omitempty"`
}

// SceneSuggestions is the batch of ideas returned by one suggestion call.
// RawResponse keeps the unparsed model output when decoding failed.
type SceneSuggestions struct {
	Suggestions []SceneSuggestion `json:"suggestions"`
	RawResponse string            `json:"raw_response,omitempty"`
}
