// internal/app/app.go

// Package app bootstraps the service graph into the DI container.
package app

import (
	"fmt"

	"github.com/Halcyon-Ink/StoryLoom/internal/config"
	"github.com/Halcyon-Ink/StoryLoom/internal/di"
	"github.com/Halcyon-Ink/StoryLoom/internal/services"
	"github.com/Halcyon-Ink/StoryLoom/internal/storage"

	// Provider registration.
	_ "github.com/Halcyon-Ink/StoryLoom/internal/llm/providers/anthropic"
	_ "github.com/Halcyon-Ink/StoryLoom/internal/llm/providers/ollama"
	_ "github.com/Halcyon-Ink/StoryLoom/internal/llm/providers/openai"
)

// InitServices constructs every service in dependency order and registers it
// in the container. Call after config.InitConfig.
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	container.Register("storage", store)

	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("initializing llm service: %w", err)
	}
	container.Register("llm", llmService)

	storyService := services.NewStoryService(store)
	container.Register("story", storyService)

	codexService := services.NewCodexService(store)
	container.Register("codex", codexService)

	manuscriptService := services.NewManuscriptService(store, codexService, storyService)
	container.Register("manuscript", manuscriptService)

	extractionService := services.NewExtractionService(llmService, manuscriptService, codexService)
	container.Register("extraction", extractionService)

	writerService := services.NewWriterService(llmService, storyService, codexService, manuscriptService)
	container.Register("writer", writerService)

	suggestService := services.NewSuggestService(codexService)
	container.Register("suggest", suggestService)

	configService := services.NewConfigService(llmService)
	container.Register("config", configService)

	return nil
}
