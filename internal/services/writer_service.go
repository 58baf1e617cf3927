// internal/services/writer_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// Generation defaults applied when a request leaves a knob empty.
const (
	defaultStyle  = "narrative"
	defaultTone   = "neutral"
	defaultPOV    = "third person"
	defaultLength = "medium"

	defaultContinuationWords = 500
	maxContextTimelineEvents = 10
)

var lengthGuides = map[string]string{
	"short":  "500-800 words",
	"medium": "1000-1500 words",
	"long":   "2000-3000 words",
}

const rewriteSystemPrompt = `You are an expert writing assistant.
You rewrite texts according to the given instructions while preserving the original's essence and meaning.`

// WriterService is the LLM-backed writing assistant: chapter drafts,
// continuations, rewrites and next-scene ideas. Every call that generates
// inside a story carries the full codex as context.
type WriterService struct {
	llm        *LLMService
	story      *StoryService
	codex      *CodexService
	manuscript *ManuscriptService
}

// NewWriterService wires the assistant to the LLM and the codex.
func NewWriterService(llmService *LLMService, story *StoryService, codex *CodexService, manuscript *ManuscriptService) *WriterService {
	return &WriterService{llm: llmService, story: story, codex: codex, manuscript: manuscript}
}

// storyContext is everything the assistant knows about a story.
type storyContext struct {
	story      *models.Story
	characters []models.Character
	locations  []models.Location
	lore       []models.LoreEntry
	events     []models.TimelineEvent
}

func (s *WriterService) loadStoryContext(storyID int) (*storyContext, error) {
	story, err := s.story.Get(storyID)
	if err != nil {
		return nil, err
	}

	sc := &storyContext{story: story}
	if sc.characters, err = s.codex.ListCharacters(storyID); err != nil {
		return nil, err
	}
	if sc.locations, err = s.codex.ListLocations(storyID); err != nil {
		return nil, err
	}
	if sc.lore, err = s.codex.ListLore(storyID); err != nil {
		return nil, err
	}
	if sc.events, err = s.codex.ListTimeline(storyID); err != nil {
		return nil, err
	}
	return sc, nil
}

// buildStoryPrompt renders the codex as the system prompt so every
// generation stays consistent with the established world.
func buildStoryPrompt(sc *storyContext) string {
	var b strings.Builder

	synopsis := sc.story.Synopsis
	if synopsis == "" {
		synopsis = "Not defined"
	}
	fmt.Fprintf(&b, `You are an expert creative writing assistant. You are helping to write a novel titled %q.

## Story synopsis
%s

## Main characters
`, sc.story.Title, synopsis)

	for i := range sc.characters {
		ch := &sc.characters[i]
		fmt.Fprintf(&b, "\n### %s", ch.FullName())
		if ch.Role != "" {
			fmt.Fprintf(&b, "\n- Role: %s", ch.Role)
		}
		if ch.Age > 0 {
			fmt.Fprintf(&b, "\n- Age: %d", ch.Age)
		}
		if ch.Personality != "" {
			fmt.Fprintf(&b, "\n- Personality: %s", ch.Personality)
		}
		if ch.Motivation != "" {
			fmt.Fprintf(&b, "\n- Motivation: %s", ch.Motivation)
		}
		b.WriteString("\n")
	}

	if len(sc.locations) > 0 {
		b.WriteString("\n## Important locations\n")
		for _, loc := range sc.locations {
			fmt.Fprintf(&b, "\n### %s", loc.Name)
			if loc.Type != "" {
				fmt.Fprintf(&b, " (%s)", loc.Type)
			}
			if loc.Summary != "" {
				fmt.Fprintf(&b, "\n%s", loc.Summary)
			}
			b.WriteString("\n")
		}
	}

	if len(sc.lore) > 0 {
		b.WriteString("\n## World elements (lore)\n")
		for _, entry := range sc.lore {
			fmt.Fprintf(&b, "\n### %s", entry.Title)
			if entry.Category != "" {
				fmt.Fprintf(&b, " - %s", entry.Category)
			}
			if entry.Content != "" {
				fmt.Fprintf(&b, "\n%s", entry.Content)
			}
			b.WriteString("\n")
		}
	}

	if len(sc.events) > 0 {
		b.WriteString("\n## Timeline of events\n")
		events := sc.events
		if len(events) > maxContextTimelineEvents {
			events = events[:maxContextTimelineEvents]
		}
		for _, ev := range events {
			fmt.Fprintf(&b, "\n- %s", ev.Title)
			if ev.Date != "" {
				fmt.Fprintf(&b, " (%s)", ev.Date)
			}
			if ev.Summary != "" {
				fmt.Fprintf(&b, ": %s", ev.Summary)
			}
		}
	}

	b.WriteString(`

## Instructions
- Respect the characters' personalities and motivations
- Use the lore elements consistently
- Maintain the tone and style of the established world
- Write vivid scenes with descriptions and natural dialogue
`)

	return b.String()
}

func (s *WriterService) complete(ctx context.Context, systemPrompt, prompt string, maxTokens int) (string, error) {
	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		if err == ErrLLMNotReady {
			return "", apperrors.NewPreconditionError("no LLM provider configured")
		}
		return "", apperrors.NewProcessingError("generation call failed", err)
	}
	return resp.Text, nil
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// GenerateChapter drafts a full chapter from a summary of what should
// happen, constrained by the requested style, tone, point of view and the
// characters and locations to feature.
func (s *WriterService) GenerateChapter(ctx context.Context, req models.ChapterGenerationRequest) (*models.GeneratedChapter, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return nil, apperrors.NewValidationError("a summary of the chapter is required", nil)
	}

	sc, err := s.loadStoryContext(req.StoryID)
	if err != nil {
		return nil, err
	}

	style := req.Style
	if style == "" {
		style = defaultStyle
	}
	tone := req.Tone
	if tone == "" {
		tone = defaultTone
	}
	pov := req.POV
	if pov == "" {
		pov = defaultPOV
	}
	guide, ok := lengthGuides[req.Length]
	if !ok {
		guide = lengthGuides[defaultLength]
	}

	number := "To be decided"
	if req.ChapterNumber > 0 {
		number = fmt.Sprintf("%d", req.ChapterNumber)
	}
	title := req.ChapterTitle
	if title == "" {
		title = "To be generated"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, `Write a chapter for this novel.

## Chapter details
- Number: %s
- Title: %s
- Target length: %s
- Style: %s
- Tone: %s
- Point of view: %s

## What should happen
%s
`, number, title, guide, style, tone, pov, req.Summary)

	if selected := filterCharacters(sc.characters, req.IncludeCharacters); len(selected) > 0 {
		prompt.WriteString("\n## Characters to include\n")
		for i := range selected {
			fmt.Fprintf(&prompt, "- %s\n", selected[i].FullName())
		}
	}
	if selected := filterLocations(sc.locations, req.IncludeLocations); len(selected) > 0 {
		prompt.WriteString("\n## Locations to use\n")
		for _, loc := range selected {
			fmt.Fprintf(&prompt, "- %s\n", loc.Name)
		}
	}
	prompt.WriteString("\nNow write the complete chapter following all of these constraints.")

	text, err := s.complete(ctx, buildStoryPrompt(sc), prompt.String(), 4000)
	if err != nil {
		return nil, err
	}

	return &models.GeneratedChapter{
		Text:          text,
		ChapterNumber: req.ChapterNumber,
		ChapterTitle:  req.ChapterTitle,
		WordCount:     wordCount(text),
	}, nil
}

// ContinueWriting extends an existing chapter in the given direction. The
// chapter's full text rides along so the continuation picks up seamlessly.
func (s *WriterService) ContinueWriting(ctx context.Context, req models.ContinueWritingRequest) (*models.Continuation, error) {
	if strings.TrimSpace(req.Direction) == "" {
		return nil, apperrors.NewValidationError("a direction for the continuation is required", nil)
	}

	chapter, err := s.manuscript.Get(req.ManuscriptID)
	if err != nil {
		return nil, err
	}

	sc, err := s.loadStoryContext(chapter.StoryID)
	if err != nil {
		return nil, err
	}

	length := req.Length
	if length <= 0 {
		length = defaultContinuationWords
	}

	prompt := fmt.Sprintf(`Here is the current text of the chapter %q:

%s

---

Continue the story in this direction: %s

Write about %d additional words that flow naturally from the existing text.
Do not repeat what has already been written. Start the continuation directly, without preamble.
`, chapter.Title, chapter.Text, req.Direction, length)

	text, err := s.complete(ctx, buildStoryPrompt(sc), prompt, 2000)
	if err != nil {
		return nil, err
	}

	return &models.Continuation{Text: text, WordCount: wordCount(text)}, nil
}

// Rewrite transforms a piece of text under an instruction. No story context
// is involved; the text stands on its own.
func (s *WriterService) Rewrite(ctx context.Context, req models.RewriteRequest) (*models.RewriteResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.NewValidationError("text to rewrite is required", nil)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, apperrors.NewValidationError("a rewrite instruction is required", nil)
	}

	prompt := fmt.Sprintf(`Here is the text to rewrite:

%s

---

Rewrite instructions: %s

Now rewrite the text following these instructions.
`, req.Text, req.Instruction)

	text, err := s.complete(ctx, rewriteSystemPrompt, prompt, 2000)
	if err != nil {
		return nil, err
	}

	return &models.RewriteResult{
		Original:    req.Text,
		Rewritten:   text,
		Instruction: req.Instruction,
	}, nil
}

// SuggestNextScene proposes scene ideas for what could happen next, based on
// the codex and the situation the writer describes.
func (s *WriterService) SuggestNextScene(ctx context.Context, req models.SceneSuggestionRequest) (*models.SceneSuggestions, error) {
	if strings.TrimSpace(req.CurrentSituation) == "" {
		return nil, apperrors.NewValidationError("the current situation is required", nil)
	}

	sc, err := s.loadStoryContext(req.StoryID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Current situation in the story:
%s

Based on the synopsis, the characters and the timeline, suggest 5 different ideas for the next scene.
For each idea give:
1. A catchy title
2. A description in 2-3 sentences
3. The characters involved
4. The potential impact on the plot

Format your answer as JSON with this structure:
{
  "suggestions": [
    {
      "title": "...",
      "description": "...",
      "characters": ["...", "..."],
      "impact": "..."
    }
  ]
}
`, req.CurrentSituation)

	text, err := s.complete(ctx, buildStoryPrompt(sc), prompt, 2000)
	if err != nil {
		return nil, err
	}

	result := &models.SceneSuggestions{}
	if json.Unmarshal([]byte(cleanJSONResponse(text)), result) != nil || len(result.Suggestions) == 0 {
		// Keep the raw output so the caller can show what the model said.
		return &models.SceneSuggestions{RawResponse: text}, nil
	}
	return result, nil
}

func filterCharacters(characters []models.Character, ids []int) []models.Character {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Character
	for _, ch := range characters {
		if wanted[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

func filterLocations(locations []models.Location, ids []int) []models.Location {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Location
	for _, loc := range locations {
		if wanted[loc.ID] {
			out = append(out, loc)
		}
	}
	return out
}
