// internal/services/suggest_service.go
package services

import (
	"fmt"
	"strings"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// Suggestion intents.
const (
	IntentLinkCharacters   = "link_characters"
	IntentTimelineConflict = "timeline_conflicts"
)

// SuggestService runs cheap rule-based passes over the codex: relationship
// hints between characters and chronology sanity checks. No LLM involved.
type SuggestService struct {
	codex *CodexService
}

// NewSuggestService wires the service to the codex.
func NewSuggestService(codex *CodexService) *SuggestService {
	return &SuggestService{codex: codex}
}

// LinkCharacters pairs characters that look related: a shared last name
// suggests family, ages within five years suggest peers.
func (s *SuggestService) LinkCharacters(storyID int) ([]models.LinkSuggestion, error) {
	characters, err := s.codex.ListCharacters(storyID)
	if err != nil {
		return nil, err
	}

	suggestions := []models.LinkSuggestion{}
	for i := 0; i < len(characters); i++ {
		for j := i + 1; j < len(characters); j++ {
			a, b := characters[i], characters[j]

			if last := lastName(a.Name); last != "" && last == lastName(b.Name) {
				suggestions = append(suggestions, models.LinkSuggestion{
					Type:   "family",
					Pair:   [2]int{a.ID, b.ID},
					Reason: "Same family name",
				})
			}

			if a.Age > 0 && b.Age > 0 {
				diff := a.Age - b.Age
				if diff < 0 {
					diff = -diff
				}
				if diff <= 5 {
					suggestions = append(suggestions, models.LinkSuggestion{
						Type:   "peer",
						Pair:   [2]int{a.ID, b.ID},
						Reason: fmt.Sprintf("Close ages (%d vs %d)", a.Age, b.Age),
					})
				}
			}
		}
	}
	return suggestions, nil
}

// TimelineConflicts flags events whose linked characters were not yet born.
func (s *SuggestService) TimelineConflicts(storyID int) ([]models.TimelineConflict, error) {
	events, err := s.codex.ListTimeline(storyID)
	if err != nil {
		return nil, err
	}
	characters, err := s.codex.ListCharacters(storyID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]*models.Character, len(characters))
	for i := range characters {
		byID[characters[i].ID] = &characters[i]
	}

	conflicts := []models.TimelineConflict{}
	for _, ev := range events {
		eventDate, ok := parseISODate(ev.Date)
		if !ok {
			continue
		}
		for _, cid := range ev.CharacterIDs {
			ch := byID[cid]
			if ch == nil || ch.Born == "" {
				continue
			}
			born, ok := parseISODate(ch.Born)
			if !ok {
				continue
			}
			if born.After(eventDate) {
				conflicts = append(conflicts, models.TimelineConflict{
					EventID:     ev.ID,
					CharacterID: cid,
					Reason:      "Character born after event",
					EventDate:   ev.Date,
					Born:        ch.Born,
				})
			}
		}
	}
	return conflicts, nil
}

// Suggest dispatches one intent and returns its payload.
func (s *SuggestService) Suggest(storyID int, intent string) (map[string]any, error) {
	switch intent {
	case IntentLinkCharacters:
		suggestions, err := s.LinkCharacters(storyID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"suggestions": suggestions}, nil
	case IntentTimelineConflict:
		conflicts, err := s.TimelineConflicts(storyID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"conflicts": conflicts}, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown intent %q", intent), nil)
	}
}

func lastName(fullName string) string {
	fields := strings.Fields(strings.TrimSpace(fullName))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
