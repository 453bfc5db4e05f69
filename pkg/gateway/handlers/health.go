package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voicebridge-ai/voicebridge/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK          bool     `json:"ok"`
		TTSProvider string   `json:"tts_provider"`
		Issues      []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if len(h.Config.APIKeys) == 0 {
		issues = append(issues, "no api keys configured")
	}
	if h.Config.DatabaseURL == "" {
		issues = append(issues, "database url not configured")
	}
	switch h.Config.TTSProvider {
	case "cartesia", "gemini":
	default:
		issues = append(issues, "invalid tts_provider")
	}
	if h.Config.ContextCapacity <= 0 {
		issues = append(issues, "context_capacity must be > 0")
	}
	if h.Config.FrameSize <= 0 {
		issues = append(issues, "frame_size must be > 0")
	}

	resp := readyResp{
		OK:          len(issues) == 0,
		TTSProvider: h.Config.TTSProvider,
		Issues:      issues,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if resp.OK {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
