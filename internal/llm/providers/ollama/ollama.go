// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Halcyon-Ink/StoryLoom/internal/llm"
)

func init() {
	llm.Register("ollama", func() llm.Provider {
		return &Provider{
			baseURL: "http://localhost:11434",
			recommendedModels: []string{
				"llama3.1",
				"mistral",
			},
		}
	})
}

// Provider talks to a local Ollama instance. No API key required.
type Provider struct {
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	if baseURL, exists := config["ollama_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	p.client = &http.Client{Timeout: 120 * time.Second}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "mistral"
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Ollama"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	requestBody := map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	if req.Temperature > 0 {
		requestBody["options"] = map[string]interface{}{"temperature": req.Temperature}
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama request failed (%d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response  string `json:"response"`
		Model     string `json:"model"`
		Done      bool   `json:"done"`
		EvalCount int    `json:"eval_count"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         response.Response,
		TokensUsed:   response.EvalCount,
		ModelName:    response.Model,
		ProviderName: p.GetName(),
	}, nil
}
