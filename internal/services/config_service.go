// internal/services/config_service.go
package services

import (
	"strings"

	"github.com/Halcyon-Ink/StoryLoom/internal/config"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
)

// LLMStatus describes the runtime LLM configuration for API consumers.
// Secrets are masked.
type LLMStatus struct {
	Provider        string   `json:"provider"`
	Ready           bool     `json:"ready"`
	State           string   `json:"state"`
	Model           string   `json:"model,omitempty"`
	SupportedModels []string `json:"supported_models,omitempty"`
	APIKeySet       bool     `json:"api_key_set"`
}

// ConfigService is the injected surface over the runtime configuration, so
// handlers never reach for package-level config state directly.
type ConfigService struct {
	llm *LLMService
}

// NewConfigService wires the service to the LLM layer it reconfigures.
func NewConfigService(llmService *LLMService) *ConfigService {
	return &ConfigService{llm: llmService}
}

// Status reports the active provider and its readiness.
func (s *ConfigService) Status() LLMStatus {
	cfg := config.GetCurrentConfig()

	return LLMStatus{
		Provider:        cfg.LLMProvider,
		Ready:           s.llm.IsReady(),
		State:           s.llm.ReadyState(),
		Model:           cfg.LLMConfig["default_model"],
		SupportedModels: s.llm.SupportedModels(),
		APIKeySet:       cfg.LLMConfig["api_key"] != "",
	}
}

// Providers lists the registered provider names.
func (s *ConfigService) Providers() []string {
	return llm.ListProviders()
}

// MaskedLLMConfig returns the LLM settings with the API key redacted down to
// its last four characters.
func (s *ConfigService) MaskedLLMConfig() map[string]string {
	cfg := config.GetCurrentConfig()

	masked := make(map[string]string, len(cfg.LLMConfig))
	for k, v := range cfg.LLMConfig {
		if k == "api_key" && v != "" {
			masked[k] = maskKey(v)
			continue
		}
		masked[k] = v
	}
	return masked
}

// UpdateLLM swaps the provider settings, persists them and rebuilds the
// active provider. An empty api_key keeps the stored one.
func (s *ConfigService) UpdateLLM(provider string, providerConfig map[string]string) error {
	current := config.GetCurrentConfig()

	if providerConfig == nil {
		providerConfig = map[string]string{}
	}
	if providerConfig["api_key"] == "" {
		providerConfig["api_key"] = current.LLMConfig["api_key"]
	}

	if err := s.llm.UpdateProvider(provider, providerConfig); err != nil {
		return err
	}
	return config.UpdateLLMConfig(provider, providerConfig)
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
