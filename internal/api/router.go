// internal/api/router.go
package api

import (
	"fmt"

	"github.com/Halcyon-Ink/StoryLoom/internal/config"
	"github.com/Halcyon-Ink/StoryLoom/internal/di"
	"github.com/Halcyon-Ink/StoryLoom/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the HTTP surface. Services come from the container;
// nothing is constructed here.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	storyService, ok := container.Get("story").(*services.StoryService)
	if !ok {
		return nil, fmt.Errorf("story service not initialized")
	}
	codexService, ok := container.Get("codex").(*services.CodexService)
	if !ok {
		return nil, fmt.Errorf("codex service not initialized")
	}
	manuscriptService, ok := container.Get("manuscript").(*services.ManuscriptService)
	if !ok {
		return nil, fmt.Errorf("manuscript service not initialized")
	}
	extractionService, ok := container.Get("extraction").(*services.ExtractionService)
	if !ok {
		return nil, fmt.Errorf("extraction service not initialized")
	}
	writerService, ok := container.Get("writer").(*services.WriterService)
	if !ok {
		return nil, fmt.Errorf("writer service not initialized")
	}
	suggestService, ok := container.Get("suggest").(*services.SuggestService)
	if !ok {
		return nil, fmt.Errorf("suggest service not initialized")
	}
	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("config service not initialized")
	}

	hub := NewActivityHub()
	handler := NewHandler(
		storyService,
		codexService,
		manuscriptService,
		extractionService,
		writerService,
		suggestService,
		configService,
		hub,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", handler.Health)
	r.GET("/ws/activity", hub.HandleActivityWS)

	apiGroup := r.Group("/api")
	apiGroup.Use(DefaultRateLimit())
	{
		stories := apiGroup.Group("/stories")
		{
			stories.GET("", handler.ListStories)
			stories.POST("", handler.CreateStory)
			stories.GET("/:id", handler.GetStory)
			stories.PUT("/:id", handler.UpdateStory)
			stories.DELETE("/:id", handler.DeleteStory)
		}

		manuscript := apiGroup.Group("/manuscript")
		{
			manuscript.GET("", handler.ListChapters)
			manuscript.POST("", handler.CreateChapter)
			manuscript.GET("/:id", handler.GetChapter)
			manuscript.PUT("/:id", handler.UpdateChapter)
			manuscript.DELETE("/:id", handler.DeleteChapter)
			manuscript.GET("/:id/analyze", handler.AnalyzeChapter)
		}

		characters := apiGroup.Group("/characters")
		{
			characters.GET("", handler.ListCharacters)
			characters.POST("", handler.CreateCharacter)
			characters.PUT("/:id", handler.UpdateCharacter)
			characters.DELETE("/:id", handler.DeleteCharacter)
		}

		locations := apiGroup.Group("/locations")
		{
			locations.GET("", handler.ListLocations)
			locations.POST("", handler.CreateLocation)
			locations.PUT("/:id", handler.UpdateLocation)
			locations.DELETE("/:id", handler.DeleteLocation)
		}

		lore := apiGroup.Group("/lore")
		{
			lore.GET("", handler.ListLore)
			lore.POST("", handler.CreateLore)
			lore.PUT("/:id", handler.UpdateLore)
			lore.DELETE("/:id", handler.DeleteLore)
		}

		timeline := apiGroup.Group("/timeline")
		{
			timeline.GET("", handler.ListTimeline)
			timeline.POST("", handler.CreateTimelineEvent)
			timeline.PUT("/:id", handler.UpdateTimelineEvent)
			timeline.DELETE("/:id", handler.DeleteTimelineEvent)
		}

		extraction := apiGroup.Group("/extraction")
		extraction.Use(ExtractionRateLimit())
		{
			extraction.POST("/analyze", handler.ExtractEntities)
			extraction.POST("/validate-and-create", handler.ValidateAndCreate)
			extraction.POST("/batch-validate", handler.BatchValidate)
		}

		ai := apiGroup.Group("/ai")
		{
			ai.POST("/suggest", handler.Suggest)
		}

		writer := apiGroup.Group("/writer")
		writer.Use(ExtractionRateLimit())
		{
			writer.POST("/generate-chapter", handler.GenerateChapter)
			writer.POST("/continue-writing", handler.ContinueWriting)
			writer.POST("/rewrite", handler.RewriteText)
			writer.POST("/suggest-next-scene", handler.SuggestNextScene)
		}

		llmGroup := apiGroup.Group("/llm")
		{
			llmGroup.GET("/status", handler.LLMStatus)
			llmGroup.GET("/providers", handler.ListLLMProviders)
			llmGroup.GET("/config", handler.GetLLMConfig)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}
	}

	return r, nil
}
