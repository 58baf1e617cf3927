// internal/services/extraction_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// Extraction text limits. Short texts produce noise, long texts time out.
const (
	minExtractionTextLen = 100
	maxExtractionTextLen = 8000
)

const extractionSystemPrompt = `You are an expert narrative analysis assistant.
You extract structured information from literary texts.
You precisely identify characters, locations, chronological events and world-building lore.
Respond ONLY with valid JSON, no extra text.`

// ExtractionService turns manuscript text into structured codex proposals via
// the configured LLM, and persists proposals the user approved.
type ExtractionService struct {
	llm        *LLMService
	manuscript *ManuscriptService
	codex      *CodexService
}

// NewExtractionService wires the extraction pipeline.
func NewExtractionService(llmService *LLMService, manuscript *ManuscriptService, codex *CodexService) *ExtractionService {
	return &ExtractionService{llm: llmService, manuscript: manuscript, codex: codex}
}

// Analyze runs one extraction pass over a chapter. The result is a batch of
// proposals for review; nothing is persisted here.
func (s *ExtractionService) Analyze(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResult, error) {
	chapter, err := s.manuscript.Get(req.ManuscriptID)
	if err != nil {
		return nil, err
	}

	if len(chapter.Text) < minExtractionTextLen {
		return nil, apperrors.NewValidationError("manuscript text is too short to analyze", nil)
	}

	types := req.ExtractTypes
	if len(types) == 0 {
		types = models.AllEntityTypes
	}

	text := truncateText(chapter.Text, maxExtractionTextLen)

	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		Prompt:       buildExtractionPrompt(text, types),
		MaxTokens:    4000,
	})
	if err != nil {
		if err == ErrLLMNotReady {
			return nil, apperrors.NewPreconditionError("no LLM provider configured")
		}
		return nil, apperrors.NewProcessingError("extraction call failed", err)
	}

	result := &models.ExtractionResult{RawResponse: resp.Text}
	cleaned := cleanJSONResponse(resp.Text)
	if err := json.Unmarshal([]byte(cleaned), result); err != nil {
		// Keep the raw output so the caller can show what the model said.
		return &models.ExtractionResult{RawResponse: resp.Text}, nil
	}
	return result, nil
}

func buildExtractionPrompt(text string, types []models.EntityType) string {
	var instructions strings.Builder

	for _, t := range types {
		switch t {
		case models.EntityCharacters:
			instructions.WriteString(`
**CHARACTERS**: Identify every character mentioned, with:
- name (first name or full name)
- surname (family name if distinct)
- role (protagonist, antagonist, secondary, etc.)
- age (if stated or deducible)
- physical_description (physical appearance)
- personality (observed character traits)
- motivation (what drives them)
- confidence (0.0 to 1.0: how certain you are about this information)
`)
		case models.EntityLocations:
			instructions.WriteString(`
**LOCATIONS**: List every place mentioned, with:
- name (place name)
- type (city, planet, building, region, etc.)
- summary (description and significance)
- confidence
`)
		case models.EntityTimeline:
			instructions.WriteString(`
**TIMELINE**: Identify the key events, with:
- title (event title)
- date (if stated explicitly)
- summary (event summary)
- sort_order (chronological order: 1, 2, 3...)
- character_names (names of the characters involved)
- location_name (name of the place where the event happens)
- confidence
`)
		case models.EntityLore:
			instructions.WriteString(`
**LORE / WORLD-BUILDING**: Extract the elements of the world, with:
- title (concept name)
- category (magic, technology, faction, history, culture, etc.)
- content (detailed description)
- confidence
`)
		}
	}

	return fmt.Sprintf(`Analyze this text and extract the requested information.

TEXT TO ANALYZE:
---
%s
---

EXTRACTION INSTRUCTIONS:
%s
IMPORTANT:
- Be precise and factual
- Do not invent information that is not in the text
- If you are unsure about something, set its confidence to 0.5 or lower
- Return JSON with exactly this structure:

{
  "characters": [{"name": "...", "surname": "...", "role": "...", "age": null, "physical_description": "...", "personality": "...", "motivation": "...", "confidence": 0.9}],
  "locations": [{"name": "...", "type": "...", "summary": "...", "confidence": 0.8}],
  "timeline": [{"title": "...", "date": "...", "summary": "...", "sort_order": 1, "character_names": ["..."], "location_name": "...", "confidence": 0.7}],
  "lore": [{"title": "...", "category": "...", "content": "...", "confidence": 0.85}]
}

Respond ONLY with the JSON, nothing else.
`, text, instructions.String())
}

// truncateText caps text at limit bytes without splitting a multi-byte rune.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// cleanJSONResponse strips markdown code fences the model may wrap around
// its output.
func cleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[7:]
	} else if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ValidateAndCreate persists one approved proposal. Characters, locations and
// lore entries deduplicate by name or title within the story; timeline events
// never deduplicate but resolve their referenced location and characters.
func (s *ExtractionService) ValidateAndCreate(req models.ValidationRequest) (*models.CreatedEntity, error) {
	if !req.Approved {
		return &models.CreatedEntity{Status: "rejected", Message: "item rejected by the user"}, nil
	}

	switch req.ItemType {
	case "character":
		return s.createCharacter(req)
	case "location":
		return s.createLocation(req)
	case "timeline":
		return s.createTimelineEvent(req)
	case "lore":
		return s.createLore(req)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported item type %q", req.ItemType), nil)
	}
}

// BatchValidate runs validate-and-create over a whole batch, collecting
// per-item outcomes instead of failing the batch on the first error.
func (s *ExtractionService) BatchValidate(items []models.ValidationRequest) *models.BatchValidationReport {
	report := &models.BatchValidationReport{Total: len(items)}

	for _, item := range items {
		if !item.Approved {
			report.Rejected++
			continue
		}
		result, err := s.ValidateAndCreate(item)
		if err != nil {
			report.Errors++
			report.Results = append(report.Results, models.CreatedEntity{
				Status:   "error",
				ItemType: item.ItemType,
				Message:  err.Error(),
			})
			continue
		}
		switch result.Status {
		case "created":
			report.Approved++
		case "duplicate":
			report.Duplicates++
		}
		report.Results = append(report.Results, *result)
	}

	return report
}

func (s *ExtractionService) createCharacter(req models.ValidationRequest) (*models.CreatedEntity, error) {
	name := stringField(req.ItemData, "name")
	if _, exists := s.codex.FindCharacterByName(req.StoryID, name); exists {
		return &models.CreatedEntity{
			Status:  "duplicate",
			Message: fmt.Sprintf("character %q already exists", name),
		}, nil
	}

	created, err := s.codex.CreateCharacter(models.Character{
		StoryID:             req.StoryID,
		Name:                name,
		Surname:             stringField(req.ItemData, "surname"),
		Role:                stringField(req.ItemData, "role"),
		Age:                 intField(req.ItemData, "age"),
		PhysicalDescription: stringField(req.ItemData, "physical_description"),
		Personality:         stringField(req.ItemData, "personality"),
		Motivation:          stringField(req.ItemData, "motivation"),
		Goal:                stringField(req.ItemData, "goal"),
		Flaw:                stringField(req.ItemData, "flaw"),
		CharacterArc:        stringField(req.ItemData, "character_arc"),
		Skills:              stringField(req.ItemData, "skills"),
		Notes:               fmt.Sprintf("Extracted automatically (confidence: %.2f)", floatField(req.ItemData, "confidence")),
	})
	if err != nil {
		return nil, err
	}
	return createdEntity("character", created.ID, created), nil
}

func (s *ExtractionService) createLocation(req models.ValidationRequest) (*models.CreatedEntity, error) {
	name := stringField(req.ItemData, "name")
	if _, exists := s.codex.FindLocationByName(req.StoryID, name); exists {
		return &models.CreatedEntity{
			Status:  "duplicate",
			Message: fmt.Sprintf("location %q already exists", name),
		}, nil
	}

	created, err := s.codex.CreateLocation(models.Location{
		StoryID: req.StoryID,
		Name:    name,
		Type:    stringField(req.ItemData, "type"),
		Summary: stringField(req.ItemData, "summary"),
	})
	if err != nil {
		return nil, err
	}
	return createdEntity("location", created.ID, created), nil
}

func (s *ExtractionService) createTimelineEvent(req models.ValidationRequest) (*models.CreatedEntity, error) {
	event := models.TimelineEvent{
		StoryID:   req.StoryID,
		Title:     stringField(req.ItemData, "title"),
		Date:      stringField(req.ItemData, "date"),
		SortOrder: intField(req.ItemData, "sort_order"),
		Summary:   stringField(req.ItemData, "summary"),
	}

	if locName := stringField(req.ItemData, "location_name"); locName != "" {
		if loc, ok := s.codex.FindLocationByName(req.StoryID, locName); ok {
			event.LocationID = loc.ID
		}
	}

	for _, name := range stringSliceField(req.ItemData, "character_names") {
		if ch, ok := s.codex.MatchCharacterByName(req.StoryID, name); ok {
			event.CharacterIDs = append(event.CharacterIDs, ch.ID)
		}
	}

	created, err := s.codex.CreateTimelineEvent(event)
	if err != nil {
		return nil, err
	}
	return createdEntity("timeline", created.ID, created), nil
}

func (s *ExtractionService) createLore(req models.ValidationRequest) (*models.CreatedEntity, error) {
	title := stringField(req.ItemData, "title")
	if _, exists := s.codex.FindLoreByTitle(req.StoryID, title); exists {
		return &models.CreatedEntity{
			Status:  "duplicate",
			Message: fmt.Sprintf("lore entry %q already exists", title),
		}, nil
	}

	created, err := s.codex.CreateLore(models.LoreEntry{
		StoryID:  req.StoryID,
		Title:    title,
		Category: stringField(req.ItemData, "category"),
		Content:  stringField(req.ItemData, "content"),
	})
	if err != nil {
		return nil, err
	}
	return createdEntity("lore", created.ID, created), nil
}

func createdEntity(itemType string, id int, data any) *models.CreatedEntity {
	entity := &models.CreatedEntity{Status: "created", ItemType: itemType, ID: id}
	if raw, err := json.Marshal(data); err == nil {
		var asMap map[string]any
		if json.Unmarshal(raw, &asMap) == nil {
			entity.Data = asMap
		}
	}
	return entity
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func stringSliceField(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
