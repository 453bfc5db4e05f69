// Package server assembles the gateway: routes, middleware, and the
// provider stack behind the chat endpoint.
package server

import (
	"log/slog"
	"net/http"

	"github.com/voicebridge-ai/voicebridge/pkg/core/analysis"
	"github.com/voicebridge-ai/voicebridge/pkg/core/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/stt"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/tts"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/config"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/handlers"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/metrics"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/mw"
	"github.com/voicebridge-ai/voicebridge/pkg/store"
)

// Dependencies are the externally-owned collaborators the server routes
// requests to.
type Dependencies struct {
	Store    store.Store
	Lexicons *analysis.Lexicons
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	metrics *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		metrics: metrics.New("voicebridge"),
	}

	generator := llm.NewGenerator(
		llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel),
		cfg.SystemPrompt,
		cfg.LLMMaxTokens,
		logger,
	)
	generator.SetFallbackHook(s.metrics.RecordGenerationFailure)

	var ttsProvider tts.Provider
	switch cfg.TTSProvider {
	case "gemini":
		ttsProvider = tts.NewGemini(cfg.GeminiAPIKey, cfg.TTSVoice)
	default:
		ttsProvider = tts.NewCartesia(cfg.CartesiaAPIKey)
	}

	s.routes(deps, handlers.ChatHandler{
		Config:    cfg,
		Logger:    logger,
		Store:     deps.Store,
		Metrics:   s.metrics,
		Generator: generator,
		STT:       stt.NewCartesia(cfg.CartesiaAPIKey),
		TTS:       ttsProvider,
		Text:      analysis.NewTextAnalyzer(deps.Lexicons),
		Audio:     analysis.NewAudioAnalyzer(),
	})
	return s
}

func (s *Server) routes(deps Dependencies, chat handlers.ChatHandler) {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.Handle("/v1/chat", chat)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
