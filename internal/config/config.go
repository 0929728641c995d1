package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Completion backend (OpenAI-compatible)
	LLMAPIKey         string
	LLMBaseURL        string
	PrimaryModel      string
	FallbackModels    []string
	CompletionTimeout time.Duration
	MaxOutputTokens   int

	// Response cache
	UseDistributedCache bool
	ResponseCacheTTL    time.Duration
	ResponseCacheSize   int
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool

	// Speech synthesis backend
	SpeechAPIURL    string
	SpeechAPIKey    string
	SynthesisVoice  string
	SpeechCacheSize int

	// Lead notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	NotifyEmails      []string
	NotifyWebhookURL  string

	// Persona identity shown to the model
	PersonaName     string
	PersonaTitle    string
	PersonaBio      string
	PersonaLocation string
	PersonaEmail    string
	PersonaGitHub   string
	PersonaLinkedIn string

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		PrimaryModel:      getEnv("PRIMARY_MODEL", "gpt-4o-mini"),
		FallbackModels:    getEnvAsList("FALLBACK_MODELS", "gpt-4o,gpt-3.5-turbo"),
		CompletionTimeout: getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
		MaxOutputTokens:   getEnvAsInt("MAX_OUTPUT_TOKENS", 1024),

		UseDistributedCache: getEnvAsBool("USE_DISTRIBUTED_CACHE", false),
		ResponseCacheTTL:    getEnvAsDuration("RESPONSE_CACHE_TTL", time.Hour),
		ResponseCacheSize:   getEnvAsInt("RESPONSE_CACHE_SIZE", 500),
		RedisAddr:           getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),

		SpeechAPIURL:    getEnv("SPEECH_API_URL", ""),
		SpeechAPIKey:    getEnv("SPEECH_API_KEY", ""),
		SynthesisVoice:  getEnv("SYNTHESIS_VOICE", "en-US-Standard-D"),
		SpeechCacheSize: getEnvAsInt("SPEECH_CACHE_SIZE", 200),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Portfolio AI"),
		NotifyEmails:      getEnvAsList("NOTIFY_EMAILS", ""),
		NotifyWebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),

		PersonaName:     getEnv("PERSONA_NAME", "Caleb"),
		PersonaTitle:    getEnv("PERSONA_TITLE", "full-stack developer"),
		PersonaBio:      getEnv("PERSONA_BIO", ""),
		PersonaLocation: getEnv("PERSONA_LOCATION", ""),
		PersonaEmail:    getEnv("PERSONA_EMAIL", ""),
		PersonaGitHub:   getEnv("PERSONA_GITHUB", ""),
		PersonaLinkedIn: getEnv("PERSONA_LINKEDIN", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", ""),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable into trimmed,
// non-empty entries.
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
