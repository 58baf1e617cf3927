// internal/services/extraction_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// cannedProvider returns a fixed completion, standing in for a real LLM.
type cannedProvider struct {
	response string
	prompts  []string
	systems  []string
}

func (p *cannedProvider) Initialize(map[string]string) error { return nil }
func (p *cannedProvider) GetName() string                    { return "Canned" }
func (p *cannedProvider) GetSupportedModels() []string       { return []string{"canned-1"} }

func (p *cannedProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.prompts = append(p.prompts, req.Prompt)
	p.systems = append(p.systems, req.SystemPrompt)
	return &llm.CompletionResponse{Text: p.response, ProviderName: p.GetName()}, nil
}

func newExtractionEnv(t *testing.T, response string) (*ExtractionService, *StoryService, *CodexService, *ManuscriptService, *cannedProvider) {
	t.Helper()
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)

	provider := &cannedProvider{response: response}
	llm.Register("canned", func() llm.Provider { return provider })

	llmSvc := NewEmptyLLMService()
	if err := llmSvc.UpdateProvider("canned", nil); err != nil {
		t.Fatalf("configuring provider: %v", err)
	}

	return NewExtractionService(llmSvc, manuscriptSvc, codexSvc), storySvc, codexSvc, manuscriptSvc, provider
}

const longText = "Elara Voss crossed the frozen bridge into Hollowmere at dawn, while the siege fires " +
	"still burned along the northern wall and the council argued about the thinning Veil."

func TestAnalyzeParsesFencedJSON(t *testing.T) {
	response := "```json\n" + `{
  "characters": [{"name": "Elara", "surname": "Voss", "confidence": 0.9}],
  "locations": [{"name": "Hollowmere", "type": "city", "confidence": 0.8}],
  "timeline": [],
  "lore": [{"title": "The Veil", "category": "magic", "confidence": 0.75}]
}` + "\n```"

	svc, storySvc, _, manuscriptSvc, provider := newExtractionEnv(t, response)
	story := mustCreateStory(t, storySvc, "Siege")
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Bridge", Number: 1, Text: longText})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	result, err := svc.Analyze(context.Background(), models.ExtractionRequest{
		ManuscriptID: chapter.ID,
		ExtractTypes: []models.EntityType{models.EntityCharacters, models.EntityLore},
	})
	if err != nil {
		t.Fatalf("analyzing: %v", err)
	}

	if len(result.Characters) != 1 || result.Characters[0].Name != "Elara" {
		t.Errorf("characters = %+v", result.Characters)
	}
	if len(result.Lore) != 1 || result.Lore[0].Title != "The Veil" {
		t.Errorf("lore = %+v", result.Lore)
	}
	if result.RawResponse == "" {
		t.Error("raw response should be preserved")
	}

	// Only the requested sections appear in the prompt.
	prompt := provider.prompts[0]
	if !strings.Contains(prompt, "CHARACTERS") || !strings.Contains(prompt, "LORE") {
		t.Error("prompt missing requested sections")
	}
	if strings.Contains(prompt, "**LOCATIONS**") {
		t.Error("prompt includes a section that was not requested")
	}
}

func TestAnalyzeShortTextRejected(t *testing.T) {
	svc, storySvc, _, manuscriptSvc, _ := newExtractionEnv(t, "{}")
	story := mustCreateStory(t, storySvc, "Short")
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Stub", Number: 1, Text: "Too short."})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	_, err = svc.Analyze(context.Background(), models.ExtractionRequest{ManuscriptID: chapter.ID})
	if !apperrors.IsValidationError(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestAnalyzeUnparsableKeepsRaw(t *testing.T) {
	svc, storySvc, _, manuscriptSvc, _ := newExtractionEnv(t, "I could not produce JSON, sorry.")
	story := mustCreateStory(t, storySvc, "Raw")
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Bridge", Number: 1, Text: longText})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	result, err := svc.Analyze(context.Background(), models.ExtractionRequest{ManuscriptID: chapter.ID})
	if err != nil {
		t.Fatalf("analyzing: %v", err)
	}
	if result.RawResponse != "I could not produce JSON, sorry." {
		t.Errorf("raw response = %q", result.RawResponse)
	}
	if result.Count(models.EntityCharacters) != 0 {
		t.Error("unparsable output must not yield items")
	}
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	storySvc, codexSvc, manuscriptSvc := newTestServices(t)
	svc := NewExtractionService(NewEmptyLLMService(), manuscriptSvc, codexSvc)

	story := mustCreateStory(t, storySvc, "NoLLM")
	chapter, err := manuscriptSvc.Create(models.Chapter{StoryID: story.ID, Title: "Bridge", Number: 1, Text: longText})
	if err != nil {
		t.Fatalf("creating chapter: %v", err)
	}

	_, err = svc.Analyze(context.Background(), models.ExtractionRequest{ManuscriptID: chapter.ID})
	if !apperrors.IsPreconditionError(err) {
		t.Errorf("got %v, want precondition error", err)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := cleanJSONResponse(tc.in); got != tc.want {
			t.Errorf("cleanJSONResponse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a byte-offset cut at 5 would split it.
	text := "abcdé"
	for limit, want := range map[int]string{
		6: "abcdé",
		5: "abcd",
		4: "abcd",
		2: "ab",
	} {
		got := truncateText(text, limit)
		if got != want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", text, limit, got, want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateText(%q, %d) produced invalid UTF-8", text, limit)
		}
	}
}

func TestValidateAndCreateCharacterDedup(t *testing.T) {
	svc, storySvc, codexSvc, _, _ := newExtractionEnv(t, "{}")
	story := mustCreateStory(t, storySvc, "Dedup")

	req := models.ValidationRequest{
		StoryID:  story.ID,
		ItemType: "character",
		ItemData: map[string]any{"name": "Elara", "role": "protagonist", "confidence": 0.9},
		Approved: true,
	}

	first, err := svc.ValidateAndCreate(req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Status != "created" || first.ID == 0 {
		t.Fatalf("first = %+v", first)
	}

	second, err := svc.ValidateAndCreate(req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Status != "duplicate" {
		t.Errorf("second.Status = %q, want duplicate", second.Status)
	}

	characters, _ := codexSvc.ListCharacters(story.ID)
	if len(characters) != 1 {
		t.Errorf("got %d characters, want 1", len(characters))
	}
	if !strings.Contains(characters[0].Notes, "0.90") {
		t.Errorf("notes should record confidence, got %q", characters[0].Notes)
	}
}

func TestValidateAndCreateRejected(t *testing.T) {
	svc, storySvc, codexSvc, _, _ := newExtractionEnv(t, "{}")
	story := mustCreateStory(t, storySvc, "Rejected")

	result, err := svc.ValidateAndCreate(models.ValidationRequest{
		StoryID:  story.ID,
		ItemType: "character",
		ItemData: map[string]any{"name": "Ghost"},
		Approved: false,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Status != "rejected" {
		t.Errorf("status = %q, want rejected", result.Status)
	}
	characters, _ := codexSvc.ListCharacters(story.ID)
	if len(characters) != 0 {
		t.Error("rejected item must not be persisted")
	}
}

func TestValidateAndCreateTimelineResolvesReferences(t *testing.T) {
	svc, storySvc, codexSvc, _, _ := newExtractionEnv(t, "{}")
	story := mustCreateStory(t, storySvc, "Refs")

	elara, err := codexSvc.CreateCharacter(models.Character{StoryID: story.ID, Name: "Elara", Surname: "Voss"})
	if err != nil {
		t.Fatalf("creating character: %v", err)
	}
	mere, err := codexSvc.CreateLocation(models.Location{StoryID: story.ID, Name: "Hollowmere"})
	if err != nil {
		t.Fatalf("creating location: %v", err)
	}

	result, err := svc.ValidateAndCreate(models.ValidationRequest{
		StoryID:  story.ID,
		ItemType: "timeline",
		ItemData: map[string]any{
			"title":           "The Siege",
			"date":            "1021-06-01",
			"sort_order":      float64(2), // JSON numbers decode as float64
			"character_names": []any{"Elara", "Unknown Rider"},
			"location_name":   "hollowmere",
		},
		Approved: true,
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	if result.Status != "created" {
		t.Fatalf("status = %q", result.Status)
	}

	events, _ := codexSvc.ListTimeline(story.ID)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	event := events[0]
	if event.LocationID != mere.ID {
		t.Errorf("location_id = %d, want %d", event.LocationID, mere.ID)
	}
	if len(event.CharacterIDs) != 1 || event.CharacterIDs[0] != elara.ID {
		t.Errorf("character ids = %v, want [%d]; unknown names are dropped", event.CharacterIDs, elara.ID)
	}
	if event.SortOrder != 2 {
		t.Errorf("sort_order = %d, want 2", event.SortOrder)
	}
}

func TestBatchValidateCounts(t *testing.T) {
	svc, storySvc, _, _, _ := newExtractionEnv(t, "{}")
	story := mustCreateStory(t, storySvc, "Batch")

	items := []models.ValidationRequest{
		{StoryID: story.ID, ItemType: "character", ItemData: map[string]any{"name": "Elara"}, Approved: true},
		{StoryID: story.ID, ItemType: "character", ItemData: map[string]any{"name": "Elara"}, Approved: true},
		{StoryID: story.ID, ItemType: "location", ItemData: map[string]any{"name": "Hollowmere"}, Approved: true},
		{StoryID: story.ID, ItemType: "lore", ItemData: map[string]any{"title": "The Veil"}, Approved: false},
		{StoryID: story.ID, ItemType: "relic", ItemData: map[string]any{"name": "Crown"}, Approved: true},
	}

	report := svc.BatchValidate(items)
	if report.Total != 5 {
		t.Errorf("total = %d", report.Total)
	}
	if report.Approved != 2 {
		t.Errorf("approved(created) = %d, want 2", report.Approved)
	}
	if report.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", report.Duplicates)
	}
	if report.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", report.Rejected)
	}
	if report.Errors != 1 {
		t.Errorf("errors = %d, want 1", report.Errors)
	}
}
