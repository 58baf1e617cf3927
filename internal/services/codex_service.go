// internal/services/codex_service.go
package services

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/Halcyon-Ink/StoryLoom/internal/storage"
)

// CodexService manages a story's world-building records: characters,
// locations, lore entries and timeline events. Each collection lives in one
// JSON document under the story directory.
type CodexService struct {
	store *storage.Store
}

// NewCodexService creates the service on top of a storage root.
func NewCodexService(store *storage.Store) *CodexService {
	return &CodexService{store: store}
}

func loadCollection[T any](store *storage.Store, storyID int, filename string) ([]T, error) {
	var items []T
	if !store.FileExists(storyDir(storyID), filename) {
		return items, nil
	}
	if err := store.LoadJSON(storyDir(storyID), filename, &items); err != nil {
		return nil, apperrors.NewProcessingError("loading "+filename, err)
	}
	return items, nil
}

func saveCollection[T any](store *storage.Store, storyID int, filename string, items []T) error {
	if err := store.SaveJSON(storyDir(storyID), filename, items); err != nil {
		return apperrors.NewProcessingError("saving "+filename, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Characters

// ListCharacters returns a story's characters.
func (s *CodexService) ListCharacters(storyID int) ([]models.Character, error) {
	return loadCollection[models.Character](s.store, storyID, "characters.json")
}

// CreateCharacter adds a character and assigns its identifier.
func (s *CodexService) CreateCharacter(ch models.Character) (*models.Character, error) {
	if ch.Name == "" {
		return nil, apperrors.NewValidationError("character name is required", nil)
	}

	characters, err := s.ListCharacters(ch.StoryID)
	if err != nil {
		return nil, err
	}

	ch.ID = nextID(characters, func(c models.Character) int { return c.ID })
	ch.CreatedAt = time.Now()
	ch.UpdatedAt = ch.CreatedAt

	characters = append(characters, ch)
	if err := saveCollection(s.store, ch.StoryID, "characters.json", characters); err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpdateCharacter overwrites one character's fields.
func (s *CodexService) UpdateCharacter(storyID, id int, ch models.Character) (*models.Character, error) {
	characters, err := s.ListCharacters(storyID)
	if err != nil {
		return nil, err
	}

	for i := range characters {
		if characters[i].ID == id {
			ch.ID = id
			ch.StoryID = storyID
			ch.CreatedAt = characters[i].CreatedAt
			ch.UpdatedAt = time.Now()
			characters[i] = ch
			if err := saveCollection(s.store, storyID, "characters.json", characters); err != nil {
				return nil, err
			}
			return &ch, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("character %d not found", id), nil)
}

// DeleteCharacter removes one character.
func (s *CodexService) DeleteCharacter(storyID, id int) error {
	characters, err := s.ListCharacters(storyID)
	if err != nil {
		return err
	}

	kept := characters[:0]
	found := false
	for _, c := range characters {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("character %d not found", id), nil)
	}
	return saveCollection(s.store, storyID, "characters.json", kept)
}

// FindCharacterByName looks a character up by exact name, case-insensitive.
func (s *CodexService) FindCharacterByName(storyID int, name string) (*models.Character, bool) {
	characters, err := s.ListCharacters(storyID)
	if err != nil {
		return nil, false
	}
	for i := range characters {
		if strings.EqualFold(characters[i].Name, name) {
			return &characters[i], true
		}
	}
	return nil, false
}

// MatchCharacterByName matches loosely: the given name may be a substring of
// the stored name or vice versa. Used when linking extracted timeline events.
func (s *CodexService) MatchCharacterByName(storyID int, name string) (*models.Character, bool) {
	if name == "" {
		return nil, false
	}
	characters, err := s.ListCharacters(storyID)
	if err != nil {
		return nil, false
	}
	lower := strings.ToLower(name)
	for i := range characters {
		stored := strings.ToLower(characters[i].FullName())
		if strings.Contains(stored, lower) || strings.Contains(lower, stored) {
			return &characters[i], true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Locations

// ListLocations returns a story's locations.
func (s *CodexService) ListLocations(storyID int) ([]models.Location, error) {
	return loadCollection[models.Location](s.store, storyID, "locations.json")
}

// CreateLocation adds a location and assigns its identifier.
func (s *CodexService) CreateLocation(loc models.Location) (*models.Location, error) {
	if loc.Name == "" {
		return nil, apperrors.NewValidationError("location name is required", nil)
	}

	locations, err := s.ListLocations(loc.StoryID)
	if err != nil {
		return nil, err
	}

	loc.ID = nextID(locations, func(l models.Location) int { return l.ID })
	locations = append(locations, loc)
	if err := saveCollection(s.store, loc.StoryID, "locations.json", locations); err != nil {
		return nil, err
	}
	return &loc, nil
}

// UpdateLocation overwrites one location's fields.
func (s *CodexService) UpdateLocation(storyID, id int, loc models.Location) (*models.Location, error) {
	locations, err := s.ListLocations(storyID)
	if err != nil {
		return nil, err
	}

	for i := range locations {
		if locations[i].ID == id {
			loc.ID = id
			loc.StoryID = storyID
			locations[i] = loc
			if err := saveCollection(s.store, storyID, "locations.json", locations); err != nil {
				return nil, err
			}
			return &loc, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("location %d not found", id), nil)
}

// DeleteLocation removes one location.
func (s *CodexService) DeleteLocation(storyID, id int) error {
	locations, err := s.ListLocations(storyID)
	if err != nil {
		return err
	}

	kept := locations[:0]
	found := false
	for _, l := range locations {
		if l.ID == id {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("location %d not found", id), nil)
	}
	return saveCollection(s.store, storyID, "locations.json", kept)
}

// FindLocationByName looks a location up by exact name, case-insensitive.
func (s *CodexService) FindLocationByName(storyID int, name string) (*models.Location, bool) {
	locations, err := s.ListLocations(storyID)
	if err != nil {
		return nil, false
	}
	for i := range locations {
		if strings.EqualFold(locations[i].Name, name) {
			return &locations[i], true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Lore entries

// ListLore returns a story's lore entries.
func (s *CodexService) ListLore(storyID int) ([]models.LoreEntry, error) {
	return loadCollection[models.LoreEntry](s.store, storyID, "lore.json")
}

// CreateLore adds a lore entry and assigns its identifier.
func (s *CodexService) CreateLore(entry models.LoreEntry) (*models.LoreEntry, error) {
	if entry.Title == "" {
		return nil, apperrors.NewValidationError("lore title is required", nil)
	}

	entries, err := s.ListLore(entry.StoryID)
	if err != nil {
		return nil, err
	}

	entry.ID = nextID(entries, func(e models.LoreEntry) int { return e.ID })
	entries = append(entries, entry)
	if err := saveCollection(s.store, entry.StoryID, "lore.json", entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateLore overwrites one lore entry's fields.
func (s *CodexService) UpdateLore(storyID, id int, entry models.LoreEntry) (*models.LoreEntry, error) {
	entries, err := s.ListLore(storyID)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].ID == id {
			entry.ID = id
			entry.StoryID = storyID
			entries[i] = entry
			if err := saveCollection(s.store, storyID, "lore.json", entries); err != nil {
				return nil, err
			}
			return &entry, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("lore entry %d not found", id), nil)
}

// DeleteLore removes one lore entry.
func (s *CodexService) DeleteLore(storyID, id int) error {
	entries, err := s.ListLore(storyID)
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("lore entry %d not found", id), nil)
	}
	return saveCollection(s.store, storyID, "lore.json", kept)
}

// FindLoreByTitle looks a lore entry up by exact title, case-insensitive.
func (s *CodexService) FindLoreByTitle(storyID int, title string) (*models.LoreEntry, bool) {
	entries, err := s.ListLore(storyID)
	if err != nil {
		return nil, false
	}
	for i := range entries {
		if strings.EqualFold(entries[i].Title, title) {
			return &entries[i], true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Timeline events

// ListTimeline returns a story's timeline events ordered by sort order.
func (s *CodexService) ListTimeline(storyID int) ([]models.TimelineEvent, error) {
	events, err := loadCollection[models.TimelineEvent](s.store, storyID, "timeline.json")
	if err != nil {
		return nil, err
	}
	sortTimeline(events)
	return events, nil
}

// CreateTimelineEvent adds an event and assigns its identifier.
func (s *CodexService) CreateTimelineEvent(event models.TimelineEvent) (*models.TimelineEvent, error) {
	if event.Title == "" {
		return nil, apperrors.NewValidationError("event title is required", nil)
	}

	events, err := s.ListTimeline(event.StoryID)
	if err != nil {
		return nil, err
	}

	event.ID = nextID(events, func(e models.TimelineEvent) int { return e.ID })
	events = append(events, event)
	sortTimeline(events)
	if err := saveCollection(s.store, event.StoryID, "timeline.json", events); err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateTimelineEvent overwrites one event's fields.
func (s *CodexService) UpdateTimelineEvent(storyID, id int, event models.TimelineEvent) (*models.TimelineEvent, error) {
	events, err := s.ListTimeline(storyID)
	if err != nil {
		return nil, err
	}

	for i := range events {
		if events[i].ID == id {
			event.ID = id
			event.StoryID = storyID
			events[i] = event
			sortTimeline(events)
			if err := saveCollection(s.store, storyID, "timeline.json", events); err != nil {
				return nil, err
			}
			return &event, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("timeline event %d not found", id), nil)
}

// DeleteTimelineEvent removes one event.
func (s *CodexService) DeleteTimelineEvent(storyID, id int) error {
	events, err := s.ListTimeline(storyID)
	if err != nil {
		return err
	}

	kept := events[:0]
	found := false
	for _, e := range events {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("timeline event %d not found", id), nil)
	}
	return saveCollection(s.store, storyID, "timeline.json", kept)
}

// ---------------------------------------------------------------------------

func nextID[T any](items []T, id func(T) int) int {
	maxID := 0
	for _, item := range items {
		if v := id(item); v > maxID {
			maxID = v
		}
	}
	return maxID + 1
}

func sortTimeline(events []models.TimelineEvent) {
	// Stable on sort order, identifier as tiebreak.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0; j-- {
			a, b := events[j-1], events[j]
			if a.SortOrder > b.SortOrder || (a.SortOrder == b.SortOrder && a.ID > b.ID) {
				events[j-1], events[j] = b, a
			} else {
				break
			}
		}
	}
}
