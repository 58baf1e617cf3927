// internal/services/writer_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

func newWriterEnv(t *testing.T, response string) (*WriterService, *StoryService, *CodexService, *ManuscriptService, *cannedProvider) {
	t.Helper()
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)

	provider := &cannedProvider{response: response}
	llm.Register("canned", func() llm.Provider { return provider })

	llmSvc := NewEmptyLLMService()
	if err := llmSvc.UpdateProvider("canned", nil); err != nil {
		t.Fatalf("configuring provider: %v", err)
	}

	return NewWriterService(llmSvc, storySvc, codexSvc, manuscriptSvc), storySvc, codexSvc, manuscriptSvc, provider
}

func TestGenerateChapterUsesStoryContext(t *testing.T) {
	svc, storySvc, codexSvc, _, provider := newWriterEnv(t, "The gates of Hollowmere opened at last.")

	story, err := storySvc.Create(models.Story{Title: "The Thinning Veil", Synopsis: "A city under siege loses its magic."})
	if err != nil {
		t.Fatalf("creating story: %v", err)
	}
	elara, err := codexSvc.CreateCharacter(models.Character{
		StoryID:     story.ID,
		Name:        "Elara",
		Surname:     "Voss",
		Role:        "protagonist",
		Personality: "stubborn and loyal",
	})
	if err != nil {
		t.Fatalf("creating character: %v", err)
	}
	if _, err := codexSvc.CreateCharacter(models.Character{StoryID: story.ID, Name: "Maro"}); err != nil {
		t.Fatalf("creating character: %v", err)
	}

	got, err := svc.GenerateChapter(context.Background(), models.ChapterGenerationRequest{
		StoryID:           story.ID,
		Summary:           "Elara finds the breach in the northern wall.",
		Length:            "short",
		IncludeCharacters: []int{elara.ID},
	})
	if err != nil {
		t.Fatalf("GenerateChapter: %v", err)
	}
	if got.Text != "The gates of Hollowmere opened at last." {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.WordCount != 7 {
		t.Errorf("WordCount = %d, want 7", got.WordCount)
	}

	system := provider.systems[0]
	for _, want := range []string{"The Thinning Veil", "A city under siege loses its magic.", "Elara Voss", "stubborn and loyal"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	prompt := provider.prompts[0]
	if !strings.Contains(prompt, "Elara finds the breach in the northern wall.") {
		t.Errorf("prompt missing the summary:\n%s", prompt)
	}
	if !strings.Contains(prompt, "500-800 words") {
		t.Errorf("prompt missing the short length guide:\n%s", prompt)
	}
	if idx := strings.Index(prompt, "## Characters to include"); idx < 0 {
		t.Errorf("prompt missing the character selection:\n%s", prompt)
	} else {
		selection := prompt[idx:]
		if !strings.Contains(selection, "Elara Voss") {
			t.Errorf("selection missing the included character:\n%s", selection)
		}
		if strings.Contains(selection, "Maro") {
			t.Errorf("selection contains an excluded character:\n%s", selection)
		}
	}
}

func TestGenerateChapterRequiresSummary(t *testing.T) {
	svc, storySvc, _, _, _ := newWriterEnv(t, "ignored")
	story := mustCreateStory(t, storySvc, "Empty")

	_, err := svc.GenerateChapter(context.Background(), models.ChapterGenerationRequest{StoryID: story.ID})
	if !apperrors.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGenerateChapterWithoutProvider(t *testing.T) {
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)
	svc := NewWriterService(NewEmptyLLMService(), storySvc, codexSvc, manuscriptSvc)
	story := mustCreateStory(t, storySvc, "NoLLM")

	_, err := svc.GenerateChapter(context.Background(), models.ChapterGenerationRequest{
		StoryID: story.ID,
		Summary: "Anything at all.",
	})
	if !apperrors.IsPreconditionError(err) {
		t.Fatalf("err = %v, want precondition error", err)
	}
}

func TestContinueWritingEmbedsManuscript(t *testing.T) {
	svc, storySvc, _, manuscriptSvc, provider := newWriterEnv(t, "She stepped through the breach.")
	story := mustCreateStory(t, storySvc, "Siege")
	chapter, err := manuscriptSvc.Create(models.Chapter{
		StoryID: story.ID,
		Title:   "The Wall",
		Number:  1,
		Text:    "The northern wall held through the night.",
	})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	got, err := svc.ContinueWriting(context.Background(), models.ContinueWritingRequest{
		ManuscriptID: chapter.ID,
		Direction:    "Elara discovers the breach.",
	})
	if err != nil {
		t.Fatalf("ContinueWriting: %v", err)
	}
	if got.WordCount != 5 {
		t.Errorf("WordCount = %d, want 5", got.WordCount)
	}

	prompt := provider.prompts[0]
	for _, want := range []string{"The northern wall held through the night.", "Elara discovers the breach.", "500"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestContinueWritingRequiresDirection(t *testing.T) {
	svc, _, _, _, _ := newWriterEnv(t, "ignored")

	_, err := svc.ContinueWriting(context.Background(), models.ContinueWritingRequest{ManuscriptID: 1})
	if !apperrors.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRewritePreservesOriginal(t *testing.T) {
	svc, _, _, _, provider := newWriterEnv(t, "The wall endured the long night.")

	got, err := svc.Rewrite(context.Background(), models.RewriteRequest{
		Text:        "The wall held all night.",
		Instruction: "Make it more formal.",
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if got.Original != "The wall held all night." {
		t.Errorf("Original = %q", got.Original)
	}
	if got.Rewritten != "The wall endured the long night." {
		t.Errorf("Rewritten = %q", got.Rewritten)
	}
	if got.Instruction != "Make it more formal." {
		t.Errorf("Instruction = %q", got.Instruction)
	}
	if !strings.Contains(provider.prompts[0], "Make it more formal.") {
		t.Errorf("prompt missing the instruction:\n%s", provider.prompts[0])
	}
}

func TestSuggestNextSceneParsesJSON(t *testing.T) {
	response := "```json\n" + `{
  "suggestions": [
    {"title": "The Breach", "description": "Elara slips through.", "characters": ["Elara Voss"], "impact": "The siege turns."},
    {"title": "The Council", "description": "The council splits.", "characters": [], "impact": "Allies become rivals."}
  ]
}` + "\n```"
	svc, storySvc, _, _, _ := newWriterEnv(t, response)
	story := mustCreateStory(t, storySvc, "Ideas")

	got, err := svc.SuggestNextScene(context.Background(), models.SceneSuggestionRequest{
		StoryID:          story.ID,
		CurrentSituation: "The siege has stalled.",
	})
	if err != nil {
		t.Fatalf("SuggestNextScene: %v", err)
	}
	if got.RawResponse != "" {
		t.Errorf("RawResponse = %q, want empty", got.RawResponse)
	}
	if len(got.Suggestions) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(got.Suggestions))
	}
	if got.Suggestions[0].Title != "The Breach" {
		t.Errorf("first title = %q", got.Suggestions[0].Title)
	}
	if got.Suggestions[0].Characters[0] != "Elara Voss" {
		t.Errorf("first characters = %v", got.Suggestions[0].Characters)
	}
}

func TestSuggestNextSceneKeepsRawOnParseFailure(t *testing.T) {
	svc, storySvc, _, _, _ := newWriterEnv(t, "Here are some ideas, in plain prose.")
	story := mustCreateStory(t, storySvc, "Raw")

	got, err := svc.SuggestNextScene(context.Background(), models.SceneSuggestionRequest{
		StoryID:          story.ID,
		CurrentSituation: "The siege has stalled.",
	})
	if err != nil {
		t.Fatalf("SuggestNextScene: %v", err)
	}
	if len(got.Suggestions) != 0 {
		t.Errorf("got %d suggestions, want none", len(got.Suggestions))
	}
	if got.RawResponse != "Here are some ideas, in plain prose." {
		t.Errorf("RawResponse = %q", got.RawResponse)
	}
}
