// internal/services/manuscript_service_test.go
package services

import (
	"strings"
	"testing"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/Halcyon-Ink/StoryLoom/internal/storage"
)

func newTestServices(t *testing.T) (*StoryService, *CodexService, *ManuscriptService) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	storySvc := NewStoryService(store)
	codexSvc := NewCodexService(store)
	return storySvc, codexSvc, NewManuscriptService(store, codexSvc, storySvc)
}

func mustCreateStory(t *testing.T, svc *StoryService, title string) *models.Story {
	t.Helper()
	story, err := svc.Create(models.Story{Title: title})
	if err != nil {
		t.Fatalf("creating story: %v", err)
	}
	return story
}

func TestChapterIDsUniqueAcrossStories(t *testing.T) {
	storySvc, _, manuscriptSvc := newTestServices(t)
	first := mustCreateStory(t, storySvc, "First")
	second := mustCreateStory(t, storySvc, "Second")

	a, err := manuscriptSvc.Create(models.Chapter{StoryID: first.ID, Title: "A", Number: 1})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}
	b, err := manuscriptSvc.Create(models.Chapter{StoryID: second.ID, Title: "B", Number: 1})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("chapter IDs must be unique across stories, both got %d", a.ID)
	}

	// Get resolves a chapter without knowing its story.
	got, err := manuscriptSvc.Get(b.ID)
	if err != nil {
		t.Fatalf("getting chapter: %v", err)
	}
	if got.StoryID != second.ID {
		t.Errorf("chapter %d resolved to story %d, want %d", b.ID, got.StoryID, second.ID)
	}
}

func TestListOrdersByChapterNumber(t *testing.T) {
	storySvc, _, manuscriptSvc := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Ordering")

	for _, n := range []int{3, 1, 2} {
		if _, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "ch", Number: n}); err != nil {
			t.Fatalf("creating chapter %d: %v", n, err)
		}
	}

	chapters, err := manuscriptSvc.List(story.ID)
	if err != nil {
		t.Fatalf("listing chapters: %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if chapters[i].Number != want {
			t.Errorf("chapters[%d].Number = %d, want %d", i, chapters[i].Number, want)
		}
	}
}

func TestChapterUpdatePreservesIdentity(t *testing.T) {
	storySvc, _, manuscriptSvc := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Identity")

	created, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Draft", Number: 1})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	updated, err := manuscriptSvc.Update(created.ID, models.Chapter{Title: "Final", Number: 1, Text: "body"})
	if err != nil {
		t.Fatalf("updating chapter: %v", err)
	}
	if updated.ID != created.ID || updated.StoryID != story.ID {
		t.Errorf("update changed identity: got id=%d story=%d", updated.ID, updated.StoryID)
	}
	if updated.Status != models.StatusDraft {
		t.Errorf("empty status should keep the previous one, got %q", updated.Status)
	}

	if _, err := manuscriptSvc.Update(9999, models.Chapter{Title: "x"}); !apperrors.IsNotFoundError(err) {
		t.Errorf("updating missing chapter: got %v, want not-found", err)
	}
}

func TestAnalyzeFastMode(t *testing.T) {
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Siege")

	elara, err := codexSvc.CreateCharacter(models.Character{
		StoryID: story.ID, Name: "Elara", Surname: "Voss", Born: "1002-03-10",
	})
	if err != nil {
		t.Fatalf("creating character: %v", err)
	}
	if _, err := codexSvc.CreateLocation(models.Location{StoryID: story.ID, Name: "Hollowmere"}); err != nil {
		t.Fatalf("creating location: %v", err)
	}
	event, err := codexSvc.CreateTimelineEvent(models.TimelineEvent{
		StoryID: story.ID, Title: "Founding of Hollowmere", Date: "0995-01-01",
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}

	text := "Elara Voss crossed the bridge into Hollowmere before the siege of Karnath. The fires burned all night."
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "The Bridge", Number: 1, Text: text})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	report, err := manuscriptSvc.Analyze(chapter.ID, models.AnalysisFast)
	if err != nil {
		t.Fatalf("analyzing: %v", err)
	}

	labels := map[string]string{}
	for _, e := range report.Entities {
		labels[e.Text] = e.Label
	}
	if labels["Elara Voss"] != "PER" {
		t.Errorf("Elara Voss labeled %q, want PER", labels["Elara Voss"])
	}
	if labels["Hollowmere"] != "LOC" {
		t.Errorf("Hollowmere labeled %q, want LOC", labels["Hollowmere"])
	}
	if labels["Karnath"] != "MISC" {
		t.Errorf("Karnath labeled %q, want MISC", labels["Karnath"])
	}

	if len(report.Mentions) != 1 || report.Mentions[0].CharacterID != elara.ID {
		t.Errorf("mentions = %+v, want one mention of character %d", report.Mentions, elara.ID)
	}

	// Elara was born after the founding; the mention flags the conflict.
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", report.Conflicts)
	}
	if report.Conflicts[0].EventID != event.ID || report.Conflicts[0].CharacterID != elara.ID {
		t.Errorf("conflict = %+v, want event %d / character %d", report.Conflicts[0], event.ID, elara.ID)
	}

	if report.Sentences != nil {
		t.Error("fast mode must not include the sentence breakdown")
	}
	if report.TextLength != len(text) {
		t.Errorf("text_length = %d, want %d", report.TextLength, len(text))
	}
}

func TestAnalyzeDetailedOffsets(t *testing.T) {
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Offsets")

	if _, err := codexSvc.CreateCharacter(models.Character{StoryID: story.ID, Name: "Bram"}); err != nil {
		t.Fatalf("creating character: %v", err)
	}

	text := "The gate opened. Bram waited there."
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Gate", Number: 1, Text: text})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	report, err := manuscriptSvc.Analyze(chapter.ID, models.AnalysisDetailed)
	if err != nil {
		t.Fatalf("analyzing: %v", err)
	}
	if len(report.Sentences) != 2 {
		t.Fatalf("got %d sentences, want 2", len(report.Sentences))
	}

	second := report.Sentences[1]
	if len(second.Entities) != 1 {
		t.Fatalf("second sentence entities = %+v, want one", second.Entities)
	}
	// Offsets in the breakdown are relative to the sentence start.
	ent := second.Entities[0]
	if got := second.Text[ent.Start:ent.End]; got != "Bram" {
		t.Errorf("sentence-relative slice = %q, want Bram", got)
	}

	if !strings.HasPrefix(second.Text, "Bram") {
		t.Errorf("second sentence = %q", second.Text)
	}
}

func TestAnalyzeRejectsUnknownMode(t *testing.T) {
	storySvc, _, manuscriptSvc := newTestServices(t)
	story := mustCreateStory(t, storySvc, "Modes")
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "x", Number: 1})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	if _, err := manuscriptSvc.Analyze(chapter.ID, "thorough"); !apperrors.IsValidationError(err) {
		t.Errorf("unknown mode: got %v, want validation error", err)
	}
}
