package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	CORSAllowedOrigins []string
	APIRateLimitRPS    float64
	APIRateLimitBurst  int
	APIMaxInFlight     int
	MaxUploadBytes     int64

	ChunkSize       int
	ChunkOverlap    int
	MaxContextChars int
	IndexWorkers    int

	OllamaURL           string
	OllamaModel         string
	OllamaTimeout       time.Duration
	LocalBreakerEnabled bool

	GroqURL              string
	GroqAPIKey           string
	GroqModel            string
	GroqVisionModel      string
	GroqTimeout          time.Duration
	RemoteRetryAttempts  int
	RemoteRateLimitDelay time.Duration
	RemoteRetryDelay     time.Duration

	GeminiAPIKey   string
	GeminiModel    string
	VisionProvider string

	OCRURL         string
	OCRConcurrency int

	PostgresDSN string
	NATSURL     string
	NATSSubject string
}

// Load resolves settings from the process environment, then a .env file,
// then the flat YAML file named by CONFIG_FILE, then built-in defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	cfg := Config{
		APIPort:  src.mustEnv("API_PORT", "8000"),
		LogLevel: src.mustEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: splitList(src.mustEnv("CORS_ALLOWED_ORIGINS", "*")),
		APIRateLimitRPS:    src.mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:  src.mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:     src.mustEnvInt("API_MAX_IN_FLIGHT", 64),
		MaxUploadBytes:     int64(src.mustEnvInt("MAX_UPLOAD_BYTES", 32<<20)),

		ChunkSize:       src.mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:    src.mustEnvInt("CHUNK_OVERLAP", 100),
		MaxContextChars: src.mustEnvInt("MAX_CONTEXT_CHARS", 4000),
		IndexWorkers:    src.mustEnvInt("INDEX_WORKERS", 4),

		OllamaURL:           src.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         src.mustEnv("OLLAMA_MODEL", "mistral:latest"),
		OllamaTimeout:       src.mustEnvMillis("OLLAMA_TIMEOUT_MS", 3000),
		LocalBreakerEnabled: src.mustEnvBool("LOCAL_BREAKER_ENABLED", true),

		GroqURL:              src.mustEnv("GROQ_URL", "https://api.groq.com/openai/v1"),
		GroqAPIKey:           src.mustEnv("GROQ_API_KEY", ""),
		GroqModel:            src.mustEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		GroqVisionModel:      src.mustEnv("GROQ_VISION_MODEL", "meta-llama/llama-4-maverick-17b-128e-instruct"),
		GroqTimeout:          src.mustEnvMillis("GROQ_TIMEOUT_MS", 60000),
		RemoteRetryAttempts:  src.mustEnvInt("REMOTE_RETRY_ATTEMPTS", 3),
		RemoteRateLimitDelay: src.mustEnvMillis("REMOTE_RATE_LIMIT_DELAY_MS", 5000),
		RemoteRetryDelay:     src.mustEnvMillis("REMOTE_RETRY_DELAY_MS", 2000),

		GeminiAPIKey:   src.mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:    src.mustEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		VisionProvider: strings.ToLower(src.mustEnv("VISION_PROVIDER", "groq")),

		OCRURL:         src.mustEnv("OCR_URL", ""),
		OCRConcurrency: src.mustEnvInt("OCR_CONCURRENCY", 1),

		PostgresDSN: src.mustEnv("POSTGRES_DSN", ""),
		NATSURL:     src.mustEnv("NATS_URL", ""),
		NATSSubject: src.mustEnv("NATS_SUBJECT", "docqa.sessions.indexed"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	case c.MaxContextChars <= 0:
		return fmt.Errorf("MAX_CONTEXT_CHARS must be positive, got %d", c.MaxContextChars)
	case c.VisionProvider != "groq" && c.VisionProvider != "gemini":
		return fmt.Errorf("VISION_PROVIDER must be groq or gemini, got %q", c.VisionProvider)
	}
	return nil
}

// readFile loads a flat KEY: value YAML document. A missing path is not an error.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) mustEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(s.mustEnvInt(key, fallback)) * time.Millisecond
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
