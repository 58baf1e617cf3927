// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/Halcyon-Ink/StoryLoom/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler owns every HTTP endpoint. Services come in through the
// constructor; handlers never build their own.
type Handler struct {
	story      *services.StoryService
	codex      *services.CodexService
	manuscript *services.ManuscriptService
	extraction *services.ExtractionService
	writer     *services.WriterService
	suggest    *services.SuggestService
	config     *services.ConfigService
	hub        *ActivityHub
	resp       *ResponseHelper
}

// NewHandler wires the handler to its services.
func NewHandler(
	story *services.StoryService,
	codex *services.CodexService,
	manuscript *services.ManuscriptService,
	extraction *services.ExtractionService,
	writer *services.WriterService,
	suggest *services.SuggestService,
	config *services.ConfigService,
	hub *ActivityHub,
) *Handler {
	return &Handler{
		story:      story,
		codex:      codex,
		manuscript: manuscript,
		extraction: extraction,
		writer:     writer,
		suggest:    suggest,
		config:     config,
		hub:        hub,
		resp:       NewResponseHelper(),
	}
}

func (h *Handler) idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.resp.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) storyIDQuery(c *gin.Context) (int, bool) {
	raw := c.Query("story_id")
	if raw == "" {
		h.resp.BadRequest(c, "story_id query parameter is required")
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		h.resp.BadRequest(c, "invalid story_id")
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Health

// Health reports server liveness and LLM readiness.
func (h *Handler) Health(c *gin.Context) {
	status := h.config.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"llm_ready": status.Ready,
	})
}

// ---------------------------------------------------------------------------
// Stories

func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.story.List()
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, stories)
}

func (h *Handler) GetStory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	story, err := h.story.Get(id)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, story)
}

func (h *Handler) CreateStory(c *gin.Context) {
	var story models.Story
	if err := c.ShouldBindJSON(&story); err != nil {
		h.resp.BadRequest(c, "invalid story payload", err.Error())
		return
	}
	created, err := h.story.Create(story)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("story_created", created.ID, fmt.Sprintf("Story %q created", created.Title))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateStory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var story models.Story
	if err := c.ShouldBindJSON(&story); err != nil {
		h.resp.BadRequest(c, "invalid story payload", err.Error())
		return
	}
	updated, err := h.story.Update(id, story)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteStory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if err := h.story.Delete(id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

// ---------------------------------------------------------------------------
// Manuscript

func (h *Handler) ListChapters(c *gin.Context) {
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	chapters, err := h.manuscript.List(storyID)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, chapters)
}

func (h *Handler) GetChapter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	chapter, err := h.manuscript.Get(id)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, chapter)
}

func (h *Handler) CreateChapter(c *gin.Context) {
	var chapter models.Chapter
	if err := c.ShouldBindJSON(&chapter); err != nil {
		h.resp.BadRequest(c, "invalid chapter payload", err.Error())
		return
	}
	created, err := h.manuscript.Create(chapter)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("chapter_created", created.StoryID, fmt.Sprintf("Chapter %q created", created.Title))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateChapter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var chapter models.Chapter
	if err := c.ShouldBindJSON(&chapter); err != nil {
		h.resp.BadRequest(c, "invalid chapter payload", err.Error())
		return
	}
	updated, err := h.manuscript.Update(id, chapter)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("chapter_saved", updated.StoryID, fmt.Sprintf("Chapter %q saved", updated.Title))
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteChapter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if err := h.manuscript.Delete(id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

func (h *Handler) AnalyzeChapter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	mode := models.AnalysisMode(c.DefaultQuery("mode", string(models.AnalysisFast)))
	report, err := h.manuscript.Analyze(id, mode)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, report)
}

// ---------------------------------------------------------------------------
// Characters

func (h *Handler) ListCharacters(c *gin.Context) {
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	characters, err := h.codex.ListCharacters(storyID)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, characters)
}

func (h *Handler) CreateCharacter(c *gin.Context) {
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		h.resp.BadRequest(c, "invalid character payload", err.Error())
		return
	}
	created, err := h.codex.CreateCharacter(character)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("character_created", created.StoryID, fmt.Sprintf("Character %q created", created.FullName()))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateCharacter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		h.resp.BadRequest(c, "invalid character payload", err.Error())
		return
	}
	updated, err := h.codex.UpdateCharacter(character.StoryID, id, character)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteCharacter(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	if err := h.codex.DeleteCharacter(storyID, id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

// ---------------------------------------------------------------------------
// Locations

func (h *Handler) ListLocations(c *gin.Context) {
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	locations, err := h.codex.ListLocations(storyID)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, locations)
}

func (h *Handler) CreateLocation(c *gin.Context) {
	var location models.Location
	if err := c.ShouldBindJSON(&location); err != nil {
		h.resp.BadRequest(c, "invalid location payload", err.Error())
		return
	}
	created, err := h.codex.CreateLocation(location)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("location_created", created.StoryID, fmt.Sprintf("Location %q created", created.Name))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var location models.Location
	if err := c.ShouldBindJSON(&location); err != nil {
		h.resp.BadRequest(c, "invalid location payload", err.Error())
		return
	}
	updated, err := h.codex.UpdateLocation(location.StoryID, id, location)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteLocation(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	if err := h.codex.DeleteLocation(storyID, id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

// ---------------------------------------------------------------------------
// Lore

func (h *Handler) ListLore(c *gin.Context) {
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	entries, err := h.codex.ListLore(storyID)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, entries)
}

func (h *Handler) CreateLore(c *gin.Context) {
	var entry models.LoreEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.resp.BadRequest(c, "invalid lore payload", err.Error())
		return
	}
	created, err := h.codex.CreateLore(entry)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("lore_created", created.StoryID, fmt.Sprintf("Lore entry %q created", created.Title))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateLore(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var entry models.LoreEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.resp.BadRequest(c, "invalid lore payload", err.Error())
		return
	}
	updated, err := h.codex.UpdateLore(entry.StoryID, id, entry)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteLore(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	if err := h.codex.DeleteLore(storyID, id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

// ---------------------------------------------------------------------------
// Timeline

func (h *Handler) ListTimeline(c *gin.Context) {
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	events, err := h.codex.ListTimeline(storyID)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, events)
}

func (h *Handler) CreateTimelineEvent(c *gin.Context) {
	var event models.TimelineEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.resp.BadRequest(c, "invalid timeline payload", err.Error())
		return
	}
	created, err := h.codex.CreateTimelineEvent(event)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("event_created", created.StoryID, fmt.Sprintf("Timeline event %q created", created.Title))
	h.resp.Created(c, created)
}

func (h *Handler) UpdateTimelineEvent(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var event models.TimelineEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.resp.BadRequest(c, "invalid timeline payload", err.Error())
		return
	}
	updated, err := h.codex.UpdateTimelineEvent(event.StoryID, id, event)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, updated)
}

func (h *Handler) DeleteTimelineEvent(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	storyID, ok := h.storyIDQuery(c)
	if !ok {
		return
	}
	if err := h.codex.DeleteTimelineEvent(storyID, id); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"ok": true})
}

// ---------------------------------------------------------------------------
// Extraction

func (h *Handler) ExtractEntities(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid extraction request", err.Error())
		return
	}
	result, err := h.extraction.Analyze(c.Request.Context(), req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("extraction_finished", 0, fmt.Sprintf("Extraction for chapter %d finished", req.ManuscriptID))
	h.resp.Success(c, result)
}

func (h *Handler) ValidateAndCreate(c *gin.Context) {
	var req models.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid validation request", err.Error())
		return
	}
	result, err := h.extraction.ValidateAndCreate(req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	if result.Status == "created" {
		h.hub.Publish("entity_created", req.StoryID, fmt.Sprintf("%s #%d created from extraction", result.ItemType, result.ID))
	}
	h.resp.Success(c, result)
}

func (h *Handler) BatchValidate(c *gin.Context) {
	var items []models.ValidationRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		h.resp.BadRequest(c, "invalid batch payload", err.Error())
		return
	}
	report := h.extraction.BatchValidate(items)
	h.resp.Success(c, report)
}

// ---------------------------------------------------------------------------
// Writing assistant

func (h *Handler) GenerateChapter(c *gin.Context) {
	var req models.ChapterGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid generation request", err.Error())
		return
	}
	result, err := h.writer.GenerateChapter(c.Request.Context(), req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.hub.Publish("chapter_generated", req.StoryID, fmt.Sprintf("Draft of %d words generated", result.WordCount))
	h.resp.Success(c, result)
}

func (h *Handler) ContinueWriting(c *gin.Context) {
	var req models.ContinueWritingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid continuation request", err.Error())
		return
	}
	result, err := h.writer.ContinueWriting(c.Request.Context(), req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, result)
}

func (h *Handler) RewriteText(c *gin.Context) {
	var req models.RewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid rewrite request", err.Error())
		return
	}
	result, err := h.writer.Rewrite(c.Request.Context(), req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, result)
}

func (h *Handler) SuggestNextScene(c *gin.Context) {
	var req models.SceneSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid suggestion request", err.Error())
		return
	}
	result, err := h.writer.SuggestNextScene(c.Request.Context(), req)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, result)
}

// ---------------------------------------------------------------------------
// Suggestions

type suggestRequest struct {
	StoryID int    `json:"story_id"`
	Intent  string `json:"intent"`
}

func (h *Handler) Suggest(c *gin.Context) {
	req := suggestRequest{Intent: services.IntentLinkCharacters}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid suggest request", err.Error())
		return
	}
	payload, err := h.suggest.Suggest(req.StoryID, req.Intent)
	if err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, payload)
}

// ---------------------------------------------------------------------------
// LLM configuration

func (h *Handler) LLMStatus(c *gin.Context) {
	h.resp.Success(c, h.config.Status())
}

func (h *Handler) ListLLMProviders(c *gin.Context) {
	h.resp.Success(c, gin.H{"providers": h.config.Providers()})
}

func (h *Handler) GetLLMConfig(c *gin.Context) {
	h.resp.Success(c, gin.H{
		"provider": h.config.Status().Provider,
		"config":   h.config.MaskedLLMConfig(),
	})
}

type llmConfigRequest struct {
	Provider string            `json:"provider"`
	Config   map[string]string `json:"config"`
}

func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req llmConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid config payload", err.Error())
		return
	}
	if req.Provider == "" {
		h.resp.BadRequest(c, "provider is required")
		return
	}
	if err := h.config.UpdateLLM(req.Provider, req.Config); err != nil {
		h.resp.FromError(c, err)
		return
	}
	h.resp.Success(c, h.config.Status(), "LLM configuration updated")
}
