package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the gateway reads at startup. Values come from
// VB_* environment variables; LoadFromEnv applies defaults and validates.
type Config struct {
	Addr string

	// APIKeys maps bearer token to user ID ("token:user" pairs).
	APIKeys map[string]string

	DatabaseURL string

	// Completion backend.
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	LLMMaxTokens int
	SystemPrompt string

	// Voice providers.
	CartesiaAPIKey string
	GeminiAPIKey   string
	TTSProvider    string // "cartesia" or "gemini"
	TTSVoice       string
	STTModel       string
	STTLanguage    string
	SampleRate     int

	// Conversation shape.
	ContextCapacity    int
	AudioWindowSeconds int
	FrameSize          int
	HistoryLimit       int
	Greeting           string

	// Which biomarker kinds are echoed back to the client in addition to
	// being persisted. Empty means persist only.
	EchoBiomarkers map[string]struct{}

	// Path to an external valence/arousal/dominance CSV; empty uses the
	// embedded lexicon.
	VADLexiconPath string

	WSWriteTimeout time.Duration
	WSPingInterval time.Duration

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Log rotation. Empty LogFile logs to stderr.
	LogFile      string
	LogMaxSizeMB int
	LogLevel     string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VB_ADDR", ":8080"),
		APIKeys:             make(map[string]string),
		DatabaseURL:         strings.TrimSpace(os.Getenv("VB_DATABASE_URL")),
		LLMBaseURL:          envOr("VB_LLM_BASE_URL", "http://localhost:8000"),
		LLMAPIKey:           strings.TrimSpace(os.Getenv("VB_LLM_API_KEY")),
		LLMModel:            envOr("VB_LLM_MODEL", "phi-3-mini"),
		LLMMaxTokens:        envIntOr("VB_LLM_MAX_TOKENS", 256),
		SystemPrompt:        envOr("VB_SYSTEM_PROMPT", "You are a helpful voice assistant. Keep replies short and conversational."),
		CartesiaAPIKey:      strings.TrimSpace(os.Getenv("VB_CARTESIA_API_KEY")),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("VB_GEMINI_API_KEY")),
		TTSProvider:         envOr("VB_TTS_PROVIDER", "cartesia"),
		TTSVoice:            strings.TrimSpace(os.Getenv("VB_TTS_VOICE")),
		STTModel:            envOr("VB_STT_MODEL", "ink-whisper"),
		STTLanguage:         envOr("VB_STT_LANGUAGE", "en"),
		SampleRate:          envIntOr("VB_SAMPLE_RATE", 16000),
		ContextCapacity:     envIntOr("VB_CONTEXT_CAPACITY", 10),
		AudioWindowSeconds:  envIntOr("VB_AUDIO_WINDOW_SECONDS", 3),
		FrameSize:           envIntOr("VB_FRAME_SIZE", 8192),
		HistoryLimit:        envIntOr("VB_HISTORY_LIMIT", 10),
		Greeting:            envOr("VB_GREETING", "How can I help you today?"),
		EchoBiomarkers:      make(map[string]struct{}),
		VADLexiconPath:      strings.TrimSpace(os.Getenv("VB_VAD_LEXICON_PATH")),
		WSWriteTimeout:      envDurationOr("VB_WS_WRITE_TIMEOUT", 5*time.Second),
		WSPingInterval:      envDurationOr("VB_WS_PING_INTERVAL", 20*time.Second),
		ReadHeaderTimeout:   envDurationOr("VB_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("VB_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		LogFile:             strings.TrimSpace(os.Getenv("VB_LOG_FILE")),
		LogMaxSizeMB:        envIntOr("VB_LOG_MAX_SIZE_MB", 100),
		LogLevel:            envOr("VB_LOG_LEVEL", "info"),
	}

	for _, pair := range splitCSV(os.Getenv("VB_API_KEYS")) {
		token, user, ok := strings.Cut(pair, ":")
		if !ok || token == "" || user == "" {
			return Config{}, fmt.Errorf("VB_API_KEYS entries must be token:user pairs")
		}
		cfg.APIKeys[token] = user
	}

	for _, kind := range splitCSV(os.Getenv("VB_ECHO_BIOMARKERS")) {
		cfg.EchoBiomarkers[kind] = struct{}{}
	}

	if len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("VB_API_KEYS must be set")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("VB_DATABASE_URL must be set")
	}
	switch cfg.TTSProvider {
	case "cartesia", "gemini":
	default:
		return Config{}, fmt.Errorf("VB_TTS_PROVIDER must be one of cartesia|gemini")
	}
	if cfg.TTSProvider == "cartesia" && cfg.CartesiaAPIKey == "" {
		return Config{}, fmt.Errorf("VB_CARTESIA_API_KEY must be set for cartesia TTS")
	}
	if cfg.TTSProvider == "gemini" && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("VB_GEMINI_API_KEY must be set for gemini TTS")
	}
	if cfg.CartesiaAPIKey == "" {
		return Config{}, fmt.Errorf("VB_CARTESIA_API_KEY must be set for transcription")
	}
	if cfg.LLMMaxTokens <= 0 {
		return Config{}, fmt.Errorf("VB_LLM_MAX_TOKENS must be > 0")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("VB_SAMPLE_RATE must be > 0")
	}
	if cfg.ContextCapacity <= 0 {
		return Config{}, fmt.Errorf("VB_CONTEXT_CAPACITY must be > 0")
	}
	if cfg.AudioWindowSeconds <= 0 {
		return Config{}, fmt.Errorf("VB_AUDIO_WINDOW_SECONDS must be > 0")
	}
	if cfg.FrameSize <= 0 {
		return Config{}, fmt.Errorf("VB_FRAME_SIZE must be > 0")
	}
	if cfg.HistoryLimit < 0 {
		return Config{}, fmt.Errorf("VB_HISTORY_LIMIT must be >= 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VB_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VB_WS_PING_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VB_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VB_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.LogMaxSizeMB <= 0 {
		return Config{}, fmt.Errorf("VB_LOG_MAX_SIZE_MB must be > 0")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("VB_LOG_LEVEL must be one of debug|info|warn|error")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
