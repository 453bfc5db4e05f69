package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/stt"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/tts"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/chat/protocol"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/chat/session"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/config"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/metrics"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/mw"
	"github.com/voicebridge-ai/voicebridge/pkg/store"
)

// ChatHandler upgrades /v1/chat to a websocket and runs one conversation
// session on it.
type ChatHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     store.Store
	Metrics   *metrics.Metrics
	Generator session.ReplyGenerator
	STT       stt.Provider
	TTS       tts.Provider
	Text      session.TextAnalyzer
	Audio     session.AudioAnalyzer
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if reqID, ok := mw.RequestIDFrom(r.Context()); ok {
		logger = logger.With("request_id", reqID)
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// The socket is accepted before auth so the client receives a
	// meaningful close code instead of a failed handshake.
	userID, ok := h.authenticate(r)
	if !ok {
		logger.Warn("unauthenticated chat connection rejected")
		timeout := h.Config.WSWriteTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		deadline := time.Now().Add(timeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(protocol.CloseCodeUnauthenticated, "authentication failed"), deadline)
		_ = conn.Close()
		return
	}

	sess, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    logger,
		Store:     h.Store,
		Generator: h.Generator,
		STT:       h.STT,
		STTOpts: stt.StreamOptions{
			Model:      h.Config.STTModel,
			Language:   h.Config.STTLanguage,
			SampleRate: h.Config.SampleRate,
		},
		TTS: h.TTS,
		TTSOpts: tts.SynthesizeOptions{
			Voice:      h.Config.TTSVoice,
			Language:   h.Config.STTLanguage,
			SampleRate: h.Config.SampleRate,
		},
		Text:    h.Text,
		Audio:   h.Audio,
		Metrics: h.Metrics,
		UserID:  userID,
		Config: session.Config{
			Source:             strings.TrimSpace(r.URL.Query().Get("source")),
			ContextCapacity:    h.Config.ContextCapacity,
			AudioWindowSeconds: h.Config.AudioWindowSeconds,
			FrameSize:          h.Config.FrameSize,
			SampleRate:         h.Config.SampleRate,
			HistoryLimit:       h.Config.HistoryLimit,
			Greeting:           h.Config.Greeting,
			EchoBiomarkers:     h.Config.EchoBiomarkers,
			PingInterval:       h.Config.WSPingInterval,
			WriteTimeout:       h.Config.WSWriteTimeout,
		},
	})
	if err != nil {
		logger.Error("session setup failed", "error", err)
		_ = conn.Close()
		return
	}

	if err := sess.Run(r.Context()); err != nil {
		logger.Warn("session ended with error", "error", err)
	}
}

// authenticate resolves the caller's user ID from a bearer token or the
// token query parameter.
func (h ChatHandler) authenticate(r *http.Request) (string, bool) {
	token := ""
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			token = strings.TrimSpace(after)
		}
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return "", false
	}
	user, ok := h.Config.APIKeys[token]
	return user, ok
}
