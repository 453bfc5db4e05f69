package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"VB_ADDR",
	"VB_API_KEYS",
	"VB_DATABASE_URL",
	"VB_LLM_BASE_URL",
	"VB_LLM_API_KEY",
	"VB_LLM_MODEL",
	"VB_LLM_MAX_TOKENS",
	"VB_SYSTEM_PROMPT",
	"VB_CARTESIA_API_KEY",
	"VB_GEMINI_API_KEY",
	"VB_TTS_PROVIDER",
	"VB_TTS_VOICE",
	"VB_STT_MODEL",
	"VB_STT_LANGUAGE",
	"VB_SAMPLE_RATE",
	"VB_CONTEXT_CAPACITY",
	"VB_AUDIO_WINDOW_SECONDS",
	"VB_FRAME_SIZE",
	"VB_HISTORY_LIMIT",
	"VB_GREETING",
	"VB_ECHO_BIOMARKERS",
	"VB_VAD_LEXICON_PATH",
	"VB_WS_WRITE_TIMEOUT",
	"VB_WS_PING_INTERVAL",
	"VB_READ_HEADER_TIMEOUT",
	"VB_SHUTDOWN_GRACE_PERIOD",
	"VB_LOG_FILE",
	"VB_LOG_MAX_SIZE_MB",
	"VB_LOG_LEVEL",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VB_API_KEYS", "tok-1:alice")
	t.Setenv("VB_DATABASE_URL", "postgres://localhost/voicebridge")
	t.Setenv("VB_CARTESIA_API_KEY", "ck_test")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.ContextCapacity != 10 {
		t.Fatalf("ContextCapacity = %d, want 10", cfg.ContextCapacity)
	}
	if cfg.AudioWindowSeconds != 3 {
		t.Fatalf("AudioWindowSeconds = %d, want 3", cfg.AudioWindowSeconds)
	}
	if cfg.FrameSize != 8192 {
		t.Fatalf("FrameSize = %d, want 8192", cfg.FrameSize)
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.TTSProvider != "cartesia" {
		t.Fatalf("TTSProvider = %q, want cartesia", cfg.TTSProvider)
	}
	if cfg.Greeting != "How can I help you today?" {
		t.Fatalf("Greeting = %q", cfg.Greeting)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
	if got := cfg.APIKeys["tok-1"]; got != "alice" {
		t.Fatalf(`APIKeys["tok-1"] = %q, want "alice"`, got)
	}
}

func TestLoadFromEnv_ParsesAPIKeyPairs(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_API_KEYS", "tok-1:alice, tok-2:bob")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("len(APIKeys) = %d, want 2", len(cfg.APIKeys))
	}
	if cfg.APIKeys["tok-2"] != "bob" {
		t.Fatalf(`APIKeys["tok-2"] = %q, want "bob"`, cfg.APIKeys["tok-2"])
	}
}

func TestLoadFromEnv_RejectsMalformedAPIKeys(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_API_KEYS", "just-a-token")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() accepted token without user")
	}
}

func TestLoadFromEnv_RequiresDatabaseURL(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_DATABASE_URL", "")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "VB_DATABASE_URL") {
		t.Fatalf("LoadFromEnv() error = %v, want VB_DATABASE_URL error", err)
	}
}

func TestLoadFromEnv_RejectsUnknownTTSProvider(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_TTS_PROVIDER", "espeak")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() accepted unknown TTS provider")
	}
}

func TestLoadFromEnv_GeminiNeedsKey(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_TTS_PROVIDER", "gemini")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "VB_GEMINI_API_KEY") {
		t.Fatalf("LoadFromEnv() error = %v, want VB_GEMINI_API_KEY error", err)
	}
}

func TestLoadFromEnv_EchoBiomarkers(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("VB_ECHO_BIOMARKERS", "sentiment,topics")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if _, ok := cfg.EchoBiomarkers["sentiment"]; !ok {
		t.Fatal("sentiment missing from EchoBiomarkers")
	}
	if _, ok := cfg.EchoBiomarkers["vad"]; ok {
		t.Fatal("vad should not be in EchoBiomarkers")
	}
}
