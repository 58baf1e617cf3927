// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"sync"

	"github.com/Halcyon-Ink/StoryLoom/internal/config"
	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMService wraps the active provider behind a single call surface and a
// ready flag, so callers never touch provider configuration directly.
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	isReady       bool
	readyState    string
}

// NewLLMService builds the service from the current configuration. A missing
// API key yields a non-ready service, not an error: the server still runs,
// only LLM-backed endpoints refuse work.
func NewLLMService() (*LLMService, error) {
	service := &LLMService{readyState: "not configured"}

	cfg := config.GetCurrentConfig()
	if cfg == nil || cfg.LLMProvider == "" {
		return service, nil
	}

	if err := service.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		service.readyState = err.Error()
		return service, nil
	}

	return service, nil
}

// NewEmptyLLMService returns a service with no provider, for tests and for
// running without any LLM configuration.
func NewEmptyLLMService() *LLMService {
	return &LLMService{readyState: "no provider configured"}
}

// UpdateProvider swaps the active provider. Used at startup and when the
// runtime LLM configuration changes.
func (s *LLMService) UpdateProvider(name string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(name, providerConfig)
	if err != nil {
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = name
	s.isReady = true
	s.readyState = "ready"
	return nil
}

// IsReady reports whether a provider is configured and usable.
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// ReadyState returns a short human-readable status.
func (s *LLMService) ReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// ProviderName returns the configured provider's registry name.
func (s *LLMService) ProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// SupportedModels lists the active provider's recommended models.
func (s *LLMService) SupportedModels() []string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider == nil {
		return nil
	}
	return s.provider.GetSupportedModels()
}

// CompleteText forwards one completion request to the active provider.
func (s *LLMService) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	s.providerMutex.RUnlock()

	if !ready || provider == nil {
		return nil, ErrLLMNotReady
	}

	return provider.CompleteText(ctx, req)
}
