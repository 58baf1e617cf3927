// internal/services/suggest_service_test.go
package services

import (
	"testing"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

func TestLinkCharacterSuggestions(t *testing.T) {
	storySvc, codexSvc, _ := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Links")
	svc := NewSuggestService(codexSvc)

	for _, c := range []models.Character{
		{StoryID: story.ID, Name: "Elara Voss", Age: 27},
		{StoryID: story.ID, Name: "Bram Voss", Age: 31},
		{StoryID: story.ID, Name: "The Warden", Age: 70},
	} {
		if _, err := codexSvc.CreateCharacter(c); err != nil {
			t.Fatalf("creating character: %v", err)
		}
	}

	suggestions, err := svc.LinkCharacters(story.ID)
	if err != nil {
		t.Fatalf("suggesting: %v", err)
	}

	var family, peer int
	for _, s := range suggestions {
		switch s.Type {
		case "family":
			family++
		case "peer":
			peer++
		}
	}
	// Elara and Bram share a surname and are four years apart.
	if family != 1 {
		t.Errorf("family suggestions = %d, want 1", family)
	}
	if peer != 1 {
		t.Errorf("peer suggestions = %d, want 1", peer)
	}
}

func TestTimelineConflictSuggestions(t *testing.T) {
	storySvc, codexSvc, _ := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Conflicts")
	svc := NewSuggestService(codexSvc)

	late, err := codexSvc.CreateCharacter(models.Character{StoryID: story.ID, Name: "Elara", Born: "1010-01-01"})
	if err != nil {
		t.Fatalf("creating character: %v", err)
	}
	early, err := codexSvc.CreateCharacter(models.Character{StoryID: story.ID, Name: "Bram", Born: "0990-01-01"})
	if err != nil {
		t.Fatalf("creating character: %v", err)
	}

	if _, err := codexSvc.CreateTimelineEvent(models.TimelineEvent{
		StoryID:      story.ID,
		Title:        "The First Siege",
		Date:         "1000-06-01",
		CharacterIDs: []int{late.ID, early.ID},
	}); err != nil {
		t.Fatalf("creating event: %v", err)
	}
	// Unparseable dates are skipped, not reported.
	if _, err := codexSvc.CreateTimelineEvent(models.TimelineEvent{
		StoryID:      story.ID,
		Title:        "The Long Winter",
		Date:         "sometime later",
		CharacterIDs: []int{late.ID},
	}); err != nil {
		t.Fatalf("creating event: %v", err)
	}

	conflicts, err := svc.TimelineConflicts(story.ID)
	if err != nil {
		t.Fatalf("checking conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", conflicts)
	}
	if conflicts[0].CharacterID != late.ID {
		t.Errorf("conflict names character %d, want %d", conflicts[0].CharacterID, late.ID)
	}
}

func TestSuggestUnknownIntent(t *testing.T) {
	_, codexSvc, _ := newTestServices(t)
	svc := NewSuggestService(codexSvc)

	if _, err := svc.Suggest(1, "prophecy"); !apperrors.IsValidationError(err) {
		t.Errorf("got %v, want validation error", err)
	}
}
