// internal/services/story_service.go
package services

import (
	"fmt"
	"sort"
	"strconv"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/Halcyon-Ink/StoryLoom/internal/storage"
)

const storiesDir = "stories"

// StoryService manages the story records themselves. Each story owns a
// directory under data/stories/ holding its codex and chapters.
type StoryService struct {
	store *storage.Store
}

// NewStoryService creates the service on top of a storage root.
func NewStoryService(store *storage.Store) *StoryService {
	return &StoryService{store: store}
}

func storyDir(storyID int) string {
	return storiesDir + "/" + strconv.Itoa(storyID)
}

// List returns all stories ordered by identifier.
func (s *StoryService) List() ([]models.Story, error) {
	dirs, err := s.store.ListDirs(storiesDir)
	if err != nil {
		// No stories created yet.
		return []models.Story{}, nil
	}

	stories := make([]models.Story, 0, len(dirs))
	for _, dir := range dirs {
		id, err := strconv.Atoi(dir)
		if err != nil {
			continue
		}
		var story models.Story
		if err := s.store.LoadJSON(storyDir(id), "story.json", &story); err != nil {
			continue
		}
		stories = append(stories, story)
	}

	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories, nil
}

// Get returns one story by identifier.
func (s *StoryService) Get(storyID int) (*models.Story, error) {
	var story models.Story
	if err := s.store.LoadJSON(storyDir(storyID), "story.json", &story); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("story %d not found", storyID), err)
	}
	return &story, nil
}

// Create persists a new story and assigns its identifier.
func (s *StoryService) Create(story models.Story) (*models.Story, error) {
	if story.Title == "" {
		return nil, apperrors.NewValidationError("story title is required", nil)
	}

	stories, err := s.List()
	if err != nil {
		return nil, err
	}

	maxID := 0
	for _, existing := range stories {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	story.ID = maxID + 1

	if err := s.store.SaveJSON(storyDir(story.ID), "story.json", &story); err != nil {
		return nil, apperrors.NewProcessingError("saving story", err)
	}
	return &story, nil
}

// Update overwrites an existing story's fields.
func (s *StoryService) Update(storyID int, story models.Story) (*models.Story, error) {
	if _, err := s.Get(storyID); err != nil {
		return nil, err
	}

	story.ID = storyID
	if err := s.store.SaveJSON(storyDir(storyID), "story.json", &story); err != nil {
		return nil, apperrors.NewProcessingError("saving story", err)
	}
	return &story, nil
}

// Delete removes a story and everything it owns.
func (s *StoryService) Delete(storyID int) error {
	if _, err := s.Get(storyID); err != nil {
		return err
	}
	if err := s.store.DeleteDir(storyDir(storyID)); err != nil {
		return apperrors.NewProcessingError("deleting story", err)
	}
	return nil
}
