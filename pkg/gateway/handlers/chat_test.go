package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/stt"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/tts"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/chat/protocol"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/config"
	"github.com/voicebridge-ai/voicebridge/pkg/store"
)

type memStore struct {
	mu       sync.Mutex
	sess     store.Session
	source   string
	messages []types.Turn
}

func (m *memStore) GetOrCreateActiveSession(ctx context.Context, userID, source string) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
	if m.sess.ID == uuid.Nil {
		m.sess = store.Session{ID: uuid.New(), UserID: userID, Source: source, StartedAt: time.Now()}
	}
	return m.sess, nil
}

func (m *memStore) lastSource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *memStore) CloseSession(ctx context.Context, id uuid.UUID) error { return nil }

func (m *memStore) AddMessage(ctx context.Context, sessionID uuid.UUID, turn types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, turn)
	return nil
}

func (m *memStore) AddBiomarkersBulk(ctx context.Context, sessionID uuid.UUID, scores []types.BiomarkerScore) error {
	return nil
}

func (m *memStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Turn, error) {
	return nil, nil
}

func (m *memStore) Close() {}

type nullSTT struct{}

func (nullSTT) Name() string { return "null" }

func (nullSTT) NewStream(ctx context.Context, opts stt.StreamOptions) (stt.Stream, error) {
	return &nullStream{deltas: make(chan stt.TranscriptDelta)}, nil
}

type nullStream struct {
	deltas chan stt.TranscriptDelta
	once   sync.Once
}

func (s *nullStream) SendAudio(data []byte) error { return nil }

func (s *nullStream) Finalize() error {
	s.once.Do(func() { close(s.deltas) })
	return nil
}

func (s *nullStream) Transcripts() <-chan stt.TranscriptDelta { return s.deltas }

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.deltas) })
	return nil
}

type nullTTS struct{}

func (nullTTS) Name() string { return "null" }

func (nullTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) ([]byte, error) {
	return []byte("pcm"), nil
}

type staticGen struct{}

func (staticGen) Generate(ctx context.Context, turns []types.Turn) string { return "sure thing" }

type noScores struct{}

func (noScores) Biomarkers(turns []types.Turn) []types.BiomarkerScore { return nil }

type noAudioScores struct{}

func (noAudioScores) Biomarkers(w types.AudioWindow, overlapPerMinute float64) []types.BiomarkerScore {
	return nil
}

func testChatHandler() ChatHandler {
	return ChatHandler{
		Config: config.Config{
			APIKeys:            map[string]string{"tok-1": "alice"},
			ContextCapacity:    10,
			AudioWindowSeconds: 3,
			FrameSize:          8192,
			SampleRate:         16000,
			Greeting:           "How can I help you today?",
			WSWriteTimeout:     time.Second,
			WSPingInterval:     20 * time.Second,
		},
		Logger:    slog.New(slog.DiscardHandler),
		Store:     &memStore{},
		Generator: staticGen{},
		STT:       nullSTT{},
		TTS:       nullTTS{},
		Text:      noScores{},
		Audio:     noAudioScores{},
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestChatHandler_RejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(testChatHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/chat?token=wrong"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("err = %v, want close error", err)
	}
	if closeErr.Code != protocol.CloseCodeUnauthenticated {
		t.Fatalf("close code = %d, want %d", closeErr.Code, protocol.CloseCodeUnauthenticated)
	}
}

func TestChatHandler_FullTurnOverWebsocket(t *testing.T) {
	h := testChatHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/chat?token=tok-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transcription","text":"hello"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var seen []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read (seen %v): %v", seen, err)
		}
		var env struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		seen = append(seen, env.Type)
		if env.Type == "llm_response" {
			if env.Text != "sure thing" {
				t.Fatalf("reply = %q, want %q", env.Text, "sure thing")
			}
			break
		}
	}

	if seen[0] != "history" {
		t.Fatalf("first frame = %q, want history", seen[0])
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"end_chat"}`)); err != nil {
		t.Fatalf("write end_chat: %v", err)
	}
}

func TestChatHandler_TagsSessionWithRequestedSource(t *testing.T) {
	h := testChatHandler()
	st := &memStore{}
	h.Store = st
	srv := httptest.NewServer(h)
	defer srv.Close()

	dialAndGreet := func(t *testing.T, path string) {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		// The history frame only goes out once the session record exists.
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read history frame: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"end_chat"}`)); err != nil {
			t.Fatalf("write end_chat: %v", err)
		}
	}

	dialAndGreet(t, "/v1/chat?token=tok-1&source=mobile_app")
	if got := st.lastSource(); got != "mobile_app" {
		t.Fatalf("session source = %q, want mobile_app", got)
	}

	dialAndGreet(t, "/v1/chat?token=tok-1")
	if got := st.lastSource(); got != "websocket" {
		t.Fatalf("default session source = %q, want websocket", got)
	}
}

func TestChatHandler_AuthenticateSources(t *testing.T) {
	h := testChatHandler()

	req := httptest.NewRequest("GET", "/v1/chat", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	if user, ok := h.authenticate(req); !ok || user != "alice" {
		t.Fatalf("bearer auth = %q, %v", user, ok)
	}

	req = httptest.NewRequest("GET", "/v1/chat?token=tok-1", nil)
	if user, ok := h.authenticate(req); !ok || user != "alice" {
		t.Fatalf("query auth = %q, %v", user, ok)
	}

	req = httptest.NewRequest("GET", "/v1/chat", nil)
	if _, ok := h.authenticate(req); ok {
		t.Fatal("missing token accepted")
	}
}
