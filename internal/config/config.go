// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig is the full runtime configuration, persisted to data/config.json.
type AppConfig struct {
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM settings, editable at runtime through the config endpoints.
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config is the environment-derived base configuration.
type Config struct {
	Port         string
	DataDir      string
	DebugMode    bool
	LLMProvider  string
	LLMAPIKey    string
	OllamaURL    string
	DefaultModel string
}

// Load reads the base configuration from the environment. A .env file is
// honored when present.
func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Port:         getEnv("PORT", "8080"),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
		LLMProvider:  getEnv("LLM_PROVIDER", "anthropic"),
		LLMAPIKey:    firstEnv("ANTHROPIC_API_KEY", "OPENAI_API_KEY", "LLM_API_KEY"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		DefaultModel: getEnv("LLM_MODEL", ""),
	}

	if config.LLMAPIKey == "" {
		log.Println("warning: no LLM API key configured; extraction and generation need one")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: could not create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig loads the base configuration, merges any saved config file, and
// installs the result as the current configuration.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:        baseConfig.Port,
		DataDir:     baseConfig.DataDir,
		DebugMode:   baseConfig.DebugMode,
		LLMProvider: baseConfig.LLMProvider,
		LLMConfig: map[string]string{
			"api_key":       baseConfig.LLMAPIKey,
			"default_model": baseConfig.DefaultModel,
			"ollama_url":    baseConfig.OllamaURL,
		},
	}

	// A saved file keeps its LLM settings; the base config wins elsewhere.
	if data, err := os.ReadFile(configFile); err == nil {
		var savedConfig AppConfig
		if json.Unmarshal(data, &savedConfig) == nil && savedConfig.LLMProvider != "" {
			savedConfig.Port = baseConfig.Port
			savedConfig.DataDir = baseConfig.DataDir
			savedConfig.DebugMode = baseConfig.DebugMode

			if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
				savedConfig.LLMConfig["api_key"] = baseConfig.LLMAPIKey
			}

			currentConfig = &savedConfig
		}
	}

	return saveLocked()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:        baseConfig.Port,
			DataDir:     baseConfig.DataDir,
			DebugMode:   baseConfig.DebugMode,
			LLMProvider: baseConfig.LLMProvider,
			LLMConfig: map[string]string{
				"api_key": baseConfig.LLMAPIKey,
			},
		}
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig replaces the LLM provider settings and persists them.
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config system not initialized")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveLocked()
}

// SaveConfig persists the current configuration to the config file.
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no configuration to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
