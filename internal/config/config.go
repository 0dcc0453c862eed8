package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Redis
	RedisURL string

	// Page context tokens
	JWTSecret       string
	ContextTokenTTL time.Duration

	// Gemini AI
	GeminiTextModel      string
	GeminiVisionModel    string
	GeminiConcurrentReqs int

	// OCR.space and image fetching
	OCREndpoint   string
	ImageProxyURL string

	// "env" reads provider keys from the process environment, "redis" from
	// the shared credential hash.
	CredentialSource string

	WorkerCount int
	ViewportTTL time.Duration

	LogFile       string
	AllowedOrigin string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		ContextTokenTTL:      getEnvAsDurationOrDefault("CONTEXT_TOKEN_TTL", 12*time.Hour),
		GeminiTextModel:      getEnvOrDefault("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiVisionModel:    getEnvOrDefault("GEMINI_VISION_MODEL", "gemini-2.5-pro"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OCREndpoint:          getEnvOrDefault("OCR_ENDPOINT", "https://api.ocr.space/parse/image"),
		ImageProxyURL:        imageProxy(),
		CredentialSource:     getEnvOrDefault("CREDENTIAL_SOURCE", "env"),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 5),
		ViewportTTL:          getEnvAsDurationOrDefault("VIEWPORT_TTL", 30*time.Second),
		LogFile:              getEnvOrDefault("LOG_FILE", "logs/screenai.log"),
		AllowedOrigin:        getEnvOrDefault("ALLOWED_ORIGIN", "*"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate reports settings that parsed but cannot work together.
func (c *Config) Validate() error {
	if c.CredentialSource != "env" && c.CredentialSource != "redis" {
		return fmt.Errorf("CREDENTIAL_SOURCE must be env or redis, got %q", c.CredentialSource)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1")
	}
	return nil
}

// imageProxy returns the fetch proxy for remote images. IMAGE_PROXY_URL=direct
// fetches images without one.
func imageProxy() string {
	val := getEnvOrDefault("IMAGE_PROXY_URL", "https://images1-focus-opensocial.googleusercontent.com/gadgets/proxy?container=none")
	if val == "direct" {
		return ""
	}
	return val
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
