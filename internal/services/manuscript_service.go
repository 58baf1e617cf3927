// internal/services/manuscript_service.go
package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/Halcyon-Ink/StoryLoom/internal/storage"
)

const chaptersFile = "chapters.json"

// ManuscriptService manages chapters and runs the lightweight text analysis.
// Chapter identifiers are unique across all stories so a chapter can be
// addressed without naming its story.
type ManuscriptService struct {
	store *storage.Store
	codex *CodexService
	story *StoryService
}

// NewManuscriptService wires the service to storage and the codex.
func NewManuscriptService(store *storage.Store, codex *CodexService, story *StoryService) *ManuscriptService {
	return &ManuscriptService{store: store, codex: codex, story: story}
}

func (s *ManuscriptService) loadChapters(storyID int) ([]models.Chapter, error) {
	return loadCollection[models.Chapter](s.store, storyID, chaptersFile)
}

// List returns a story's chapters ordered by chapter number.
func (s *ManuscriptService) List(storyID int) ([]models.Chapter, error) {
	chapters, err := s.loadChapters(storyID)
	if err != nil {
		return nil, err
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	return chapters, nil
}

// Get returns one chapter by its global identifier.
func (s *ManuscriptService) Get(chapterID int) (*models.Chapter, error) {
	stories, err := s.story.List()
	if err != nil {
		return nil, err
	}
	for _, story := range stories {
		chapters, err := s.loadChapters(story.ID)
		if err != nil {
			continue
		}
		for i := range chapters {
			if chapters[i].ID == chapterID {
				return &chapters[i], nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("chapter %d not found", chapterID), nil)
}

// Create persists a new chapter. The identifier is one past the highest
// identifier in use anywhere, so a chapter keeps its ID if it moves.
func (s *ManuscriptService) Create(ch models.Chapter) (*models.Chapter, error) {
	if ch.Title == "" {
		return nil, apperrors.NewValidationError("chapter title is required", nil)
	}
	if _, err := s.story.Get(ch.StoryID); err != nil {
		return nil, err
	}
	if ch.Status == "" {
		ch.Status = models.StatusDraft
	}

	maxID, err := s.maxChapterID()
	if err != nil {
		return nil, err
	}
	ch.ID = maxID + 1
	ch.CreatedAt = time.Now()
	ch.UpdatedAt = ch.CreatedAt

	chapters, err := s.loadChapters(ch.StoryID)
	if err != nil {
		return nil, err
	}
	chapters = append(chapters, ch)
	if err := saveCollection(s.store, ch.StoryID, chaptersFile, chapters); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Update overwrites an existing chapter's fields. Identifier, story and
// creation time are preserved.
func (s *ManuscriptService) Update(chapterID int, update models.Chapter) (*models.Chapter, error) {
	existing, err := s.Get(chapterID)
	if err != nil {
		return nil, err
	}

	chapters, err := s.loadChapters(existing.StoryID)
	if err != nil {
		return nil, err
	}
	for i := range chapters {
		if chapters[i].ID == chapterID {
			update.ID = chapterID
			update.StoryID = existing.StoryID
			update.CreatedAt = chapters[i].CreatedAt
			update.UpdatedAt = time.Now()
			if update.Status == "" {
				update.Status = chapters[i].Status
			}
			chapters[i] = update
			if err := saveCollection(s.store, existing.StoryID, chaptersFile, chapters); err != nil {
				return nil, err
			}
			return &update, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("chapter %d not found", chapterID), nil)
}

// Delete removes one chapter.
func (s *ManuscriptService) Delete(chapterID int) error {
	existing, err := s.Get(chapterID)
	if err != nil {
		return err
	}

	chapters, err := s.loadChapters(existing.StoryID)
	if err != nil {
		return err
	}
	kept := chapters[:0]
	for _, c := range chapters {
		if c.ID != chapterID {
			kept = append(kept, c)
		}
	}
	return saveCollection(s.store, existing.StoryID, chaptersFile, kept)
}

func (s *ManuscriptService) maxChapterID() (int, error) {
	stories, err := s.story.List()
	if err != nil {
		return 0, err
	}
	maxID := 0
	for _, story := range stories {
		chapters, err := s.loadChapters(story.ID)
		if err != nil {
			continue
		}
		for _, c := range chapters {
			if c.ID > maxID {
				maxID = c.ID
			}
		}
	}
	return maxID, nil
}

// ---------------------------------------------------------------------------
// Analysis

// Analyze scans one chapter's text for named entities, codex character
// mentions and timeline conflicts. Detailed mode adds a per-sentence
// breakdown with sentence-relative entity offsets.
func (s *ManuscriptService) Analyze(chapterID int, mode models.AnalysisMode) (*models.AnalysisReport, error) {
	if mode != models.AnalysisFast && mode != models.AnalysisDetailed {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown analysis mode %q", mode), nil)
	}

	chapter, err := s.Get(chapterID)
	if err != nil {
		return nil, err
	}

	characters, err := s.codex.ListCharacters(chapter.StoryID)
	if err != nil {
		return nil, err
	}
	locations, err := s.codex.ListLocations(chapter.StoryID)
	if err != nil {
		return nil, err
	}

	sentences := splitSentences(chapter.Text)
	entities := scanEntities(chapter.Text, sentences, characters, locations)

	report := &models.AnalysisReport{
		ChapterID:  chapter.ID,
		Title:      chapter.Title,
		Chapter:    chapter.Number,
		Mode:       mode,
		Status:     chapter.Status,
		TextLength: len(chapter.Text),
		Entities:   entities,
		Mentions:   findMentions(chapter.Text, characters),
	}

	events, err := s.codex.ListTimeline(chapter.StoryID)
	if err == nil {
		report.Conflicts = findConflicts(report.Mentions, characters, events)
	}

	if mode == models.AnalysisDetailed {
		report.Sentences = breakdownSentences(chapter.Text, sentences, entities)
	}

	return report, nil
}

type sentenceSpan struct {
	start int
	end   int
}

// splitSentences segments text on terminal punctuation, returning byte spans.
func splitSentences(text string) []sentenceSpan {
	var spans []sentenceSpan
	start := -1
	for i, r := range text {
		if start == -1 {
			if unicode.IsSpace(r) {
				continue
			}
			start = i
		}
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			end := i
			if r != '\n' {
				end = i + 1
			}
			if end > start {
				spans = append(spans, sentenceSpan{start: start, end: end})
			}
			start = -1
		}
	}
	if start != -1 && len(text) > start {
		spans = append(spans, sentenceSpan{start: start, end: len(text)})
	}
	return spans
}

type token struct {
	text  string
	start int
	end   int
}

func tokenize(text string, base int) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
		if isWord && start == -1 {
			start = i
		}
		if !isWord && start != -1 {
			tokens = append(tokens, token{text: text[start:i], start: base + start, end: base + i})
			start = -1
		}
	}
	if start != -1 {
		tokens = append(tokens, token{text: text[start:], start: base + start, end: base + len(text)})
	}
	return tokens
}

func isCapitalized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

// scanEntities finds runs of capitalized words and classifies them against
// the codex. A run opening a sentence only counts when the codex knows the
// name, which filters ordinary sentence-start capitalization.
func scanEntities(text string, sentences []sentenceSpan, characters []models.Character, locations []models.Location) []models.Entity {
	known := func(candidate string) (string, bool) {
		for i := range characters {
			if strings.EqualFold(characters[i].Name, candidate) || strings.EqualFold(characters[i].FullName(), candidate) {
				return "PER", true
			}
		}
		for i := range locations {
			if strings.EqualFold(locations[i].Name, candidate) {
				return "LOC", true
			}
		}
		return "", false
	}

	var entities []models.Entity
	for _, span := range sentences {
		sentence := text[span.start:span.end]
		tokens := tokenize(sentence, span.start)

		for i := 0; i < len(tokens); {
			if !isCapitalized(tokens[i].text) {
				i++
				continue
			}
			j := i
			for j+1 < len(tokens) && isCapitalized(tokens[j+1].text) {
				j++
			}
			candidate := text[tokens[i].start:tokens[j].end]
			label, recognized := known(candidate)

			atSentenceStart := tokens[i].start == span.start
			if !recognized {
				if atSentenceStart {
					i = j + 1
					continue
				}
				label = "MISC"
			}

			entities = append(entities, models.Entity{
				Text:     candidate,
				Label:    label,
				Start:    tokens[i].start,
				End:      tokens[j].end,
				Sentence: sentence,
			})
			i = j + 1
		}
	}
	return entities
}

func findMentions(text string, characters []models.Character) []models.Mention {
	var mentions []models.Mention
	for _, c := range characters {
		name := strings.TrimSpace(c.Name)
		if name != "" && strings.Contains(text, name) {
			mentions = append(mentions, models.Mention{CharacterID: c.ID, Name: name})
		}
	}
	return mentions
}

// findConflicts flags every event dated before a mentioned character's birth.
func findConflicts(mentions []models.Mention, characters []models.Character, events []models.TimelineEvent) []models.TimelineConflict {
	byID := make(map[int]*models.Character, len(characters))
	for i := range characters {
		byID[characters[i].ID] = &characters[i]
	}

	var conflicts []models.TimelineConflict
	for _, ev := range events {
		eventDate, ok := parseISODate(ev.Date)
		if !ok {
			continue
		}
		for _, m := range mentions {
			ch := byID[m.CharacterID]
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
					CharacterID: ch.ID,
					Reason:      "Character born after event",
					EventDate:   ev.Date,
					Born:        ch.Born,
				})
			}
		}
	}
	return conflicts
}

func parseISODate(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func breakdownSentences(text string, spans []sentenceSpan, entities []models.Entity) []models.SentenceBreakdown {
	breakdown := make([]models.SentenceBreakdown, 0, len(spans))
	for i, span := range spans {
		sentEntities := []models.Entity{}
		for _, e := range entities {
			if e.Start >= span.start && e.End <= span.end {
				sentEntities = append(sentEntities, models.Entity{
					Text:  e.Text,
					Label: e.Label,
					Start: e.Start - span.start,
					End:   e.End - span.start,
				})
			}
		}
		breakdown = append(breakdown, models.SentenceBreakdown{
			Index:    i,
			Text:     text[span.start:span.end],
			Entities: sentEntities,
		})
	}
	return breakdown
}
