package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chat-relay/internal/llm"
	"chat-relay/internal/tokenizer"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ------------------------------------------------------------------------------------------------------
// Load reads configuration from the environment, a .env file if present, and PROMPTS_FILE
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GatewayToken: getEnv("GATEWAY_TOKEN", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", llm.DefaultBaseURL),
		Model:             getEnv("MODEL", "gpt-3.5-turbo"),
		ContextLimit:      getEnvAsInt("CONTEXT_LIMIT", 4096),
		MaxGenerateTokens: getEnvAsInt("MAX_GENERATE_TOKENS", 512),
		Temperature:       float32(getEnvAsFloat("TEMPERATURE", 1.2)),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		TokenEncoding:     getEnv("TOKEN_ENCODING", tokenizer.DefaultEncoding),

		MetaPrefix: getEnv("META_PREFIX", "msg"),

		CacheCapacity:    getEnvAsInt("CACHE_CAPACITY", 128),
		CacheAbsoluteTTL: getEnvAsDuration("CACHE_ABSOLUTE_TTL", 7*24*time.Hour),
		CacheSlidingTTL:  getEnvAsDuration("CACHE_SLIDING_TTL", time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		TokenCountTTL: getEnvAsDuration("TOKEN_COUNT_TTL", 24*time.Hour),

		MatrixHomeserver:  getEnv("MATRIX_HOMESERVER", ""),
		MatrixUserID:      getEnv("MATRIX_USER_ID", ""),
		MatrixAccessToken: getEnv("MATRIX_ACCESS_TOKEN", ""),
		MatrixRooms:       getEnvAsList("MATRIX_ROOMS"),

		PromptsFile: getEnv("PROMPTS_FILE", ""),
	}

	// On Matrix the bot is addressed by its user id.
	cfg.BotID = getEnv("BOT_ID", getEnv("MATRIX_USER_ID", "relay"))

	if cfg.PromptsFile != "" {
		prompts, err := loadPrompts(cfg.PromptsFile)
		if err != nil {
			return nil, err
		}
		cfg.Prompts = prompts.toPrompts()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ------------------------------------------------------------------------------------------------------
func loadPrompts(path string) (promptsFile, error) {
	var f promptsFile

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read prompts file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	return f, nil
}

// ------------------------------------------------------------------------------------------------------
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ------------------------------------------------------------------------------------------------------
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ------------------------------------------------------------------------------------------------------
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 32)
	if err != nil {
		return defaultValue
	}
	return value
}

// ------------------------------------------------------------------------------------------------------
// getEnvAsDuration accepts Go duration strings; "0" disables the corresponding timer
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ------------------------------------------------------------------------------------------------------
func getEnvAsList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
