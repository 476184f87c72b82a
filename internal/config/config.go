package config

import (
	"fmt"
	"strings"
	"time"

	"chat-relay/internal/service"
)

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string
	// GatewayToken guards the HTTP and WebSocket gateway. Empty leaves the gateway unmounted.
	GatewayToken string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	Model             string
	ContextLimit      int
	MaxGenerateTokens int
	Temperature       float32
	RequestTimeout    time.Duration
	TokenEncoding     string

	BotID      string
	MetaPrefix string

	CacheCapacity    int
	CacheAbsoluteTTL time.Duration
	CacheSlidingTTL  time.Duration

	// Redis only memoizes token counts; conversation history never leaves the process.
	RedisAddr     string
	RedisPassword string
	TokenCountTTL time.Duration

	MatrixHomeserver  string
	MatrixUserID      string
	MatrixAccessToken string
	MatrixRooms       []string

	PromptsFile string
	Prompts     service.Prompts
}

// promptsFile is the YAML layout of PROMPTS_FILE
type promptsFile struct {
	CoreSystemPrompts []string `yaml:"core_system_prompts"`
	Channels          []struct {
		Name          string   `yaml:"name"`
		SystemPrompts []string `yaml:"system_prompts"`
		Chatty        bool     `yaml:"chatty"`
	} `yaml:"channels"`
}

func (f promptsFile) toPrompts() service.Prompts {
	prompts := service.Prompts{Core: f.CoreSystemPrompts}
	for _, ch := range f.Channels {
		prompts.Channels = append(prompts.Channels, service.ChannelConfig{
			Name:          ch.Name,
			SystemPrompts: ch.SystemPrompts,
			Chatty:        ch.Chatty,
		})
	}
	return prompts
}

// GatewayEnabled reports whether the HTTP gateway routes are served
func (c *Config) GatewayEnabled() bool {
	return c.GatewayToken != ""
}

// MatrixEnabled reports whether the Matrix adapter should be started
func (c *Config) MatrixEnabled() bool {
	return c.MatrixHomeserver != ""
}

// ------------------------------------------------------------------------------------------------------
// Validate checks required values and ranges
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if c.ContextLimit <= 0 {
		return fmt.Errorf("CONTEXT_LIMIT must be positive, got %d", c.ContextLimit)
	}
	if c.MaxGenerateTokens <= 0 {
		return fmt.Errorf("MAX_GENERATE_TOKENS must be positive, got %d", c.MaxGenerateTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be between 0 and 2, got %g", c.Temperature)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("CACHE_CAPACITY must be positive, got %d", c.CacheCapacity)
	}
	if c.CacheAbsoluteTTL < 0 || c.CacheSlidingTTL < 0 || c.TokenCountTTL < 0 {
		return fmt.Errorf("cache TTLs cannot be negative")
	}
	if c.MatrixEnabled() && (c.MatrixUserID == "" || c.MatrixAccessToken == "") {
		return fmt.Errorf("MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are required when MATRIX_HOMESERVER is set")
	}

	seen := make(map[string]bool, len(c.Prompts.Channels))
	for _, ch := range c.Prompts.Channels {
		name := strings.ToLower(strings.TrimSpace(ch.Name))
		if name == "" {
			return fmt.Errorf("channel config in %s has an empty name", c.PromptsFile)
		}
		if seen[name] {
			return fmt.Errorf("channel %q is configured more than once", ch.Name)
		}
		seen[name] = true
	}

	return nil
}

// Settings returns the completion parameters of the conversation service
func (c *Config) Settings() service.Settings {
	return service.Settings{
		BotID:             c.BotID,
		ContextLimit:      c.ContextLimit,
		MaxGenerateTokens: c.MaxGenerateTokens,
		Temperature:       c.Temperature,
		MetaPrefix:        c.MetaPrefix,
		RequestTimeout:    c.RequestTimeout,
	}
}
