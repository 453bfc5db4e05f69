// Package session implements the per-connection conversation orchestrator:
// a state machine that sequences transcription, reply generation, speech
// synthesis, and deferred analysis over one websocket.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicebridge-ai/voicebridge/pkg/core"
	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/stt"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/tts"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/chat/protocol"
	"github.com/voicebridge-ai/voicebridge/pkg/gateway/metrics"
	"github.com/voicebridge-ai/voicebridge/pkg/store"
)

// State is the session lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the slice of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	wsWriter
}

// ReplyGenerator produces the assistant's reply for a context snapshot. It
// never fails; generation errors surface as a fixed fallback utterance.
type ReplyGenerator interface {
	Generate(ctx context.Context, turns []types.Turn) string
}

// TextAnalyzer scores a context snapshot.
type TextAnalyzer interface {
	Biomarkers(turns []types.Turn) []types.BiomarkerScore
}

// AudioAnalyzer scores one flushed audio window.
type AudioAnalyzer interface {
	Biomarkers(w types.AudioWindow, overlapPerMinute float64) []types.BiomarkerScore
}

// Config carries the per-session tunables.
type Config struct {
	ContextCapacity    int
	AudioWindowSeconds int
	FrameSize          int
	SampleRate         int
	HistoryLimit       int
	Greeting           string
	Source             string

	// Biomarker kinds echoed back to the client as well as persisted.
	EchoBiomarkers map[string]struct{}

	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Dependencies wires a Session to its collaborators.
type Dependencies struct {
	Conn      Conn
	Logger    *slog.Logger
	Store     store.Store
	Generator ReplyGenerator
	STT       stt.Provider
	STTOpts   stt.StreamOptions
	TTS       tts.Provider
	TTSOpts   tts.SynthesizeOptions
	Text      TextAnalyzer
	Audio     AudioAnalyzer
	Metrics   *metrics.Metrics
	UserID    string
	Config    Config
	Now       func() time.Time
}

// Session orchestrates one live conversation. Every inbound event and every
// transcript is handled on the single Run goroutine; concurrency lives only
// in the writer, the recognition reader, and coordinator tasks working from
// snapshots.
type Session struct {
	conn    Conn
	logger  *slog.Logger
	store   store.Store
	gen     ReplyGenerator
	sttProv stt.Provider
	sttOpts stt.StreamOptions
	ttsProv tts.Provider
	ttsOpts tts.SynthesizeOptions
	text    TextAnalyzer
	audio   AudioAnalyzer
	metrics *metrics.Metrics
	userID  string
	cfg     Config
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	buffer  *ContextBuffer
	window  *windowAccumulator
	tracker *TurnTakingTracker
	relay   *TranscriptionRelay
	tasks   *Coordinator

	frames      chan []byte
	writerErrCh chan error

	record      store.Session
	sessionOpen bool
	writerDone  bool
	startedAt   time.Time
}

type inboundFrame struct {
	data []byte
	err  error
}

// New validates deps and builds a Session in the Connecting state.
func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("stt provider is required")
	}
	if deps.TTS == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	if deps.Text == nil || deps.Audio == nil {
		return nil, fmt.Errorf("analyzers are required")
	}
	if deps.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("voicebridge")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.ContextCapacity <= 0 {
		deps.Config.ContextCapacity = 10
	}
	if deps.Config.AudioWindowSeconds <= 0 {
		deps.Config.AudioWindowSeconds = 3
	}
	if deps.Config.FrameSize <= 0 {
		deps.Config.FrameSize = 8192
	}
	if deps.Config.SampleRate <= 0 {
		deps.Config.SampleRate = 16000
	}
	if deps.Config.Greeting == "" {
		deps.Config.Greeting = "How can I help you today?"
	}
	if deps.Config.Source == "" {
		deps.Config.Source = "websocket"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:        deps.Conn,
		logger:      deps.Logger.With("user", deps.UserID, "source", deps.Config.Source),
		store:       deps.Store,
		gen:         deps.Generator,
		sttProv:     deps.STT,
		sttOpts:     deps.STTOpts,
		ttsProv:     deps.TTS,
		ttsOpts:     deps.TTSOpts,
		text:        deps.Text,
		audio:       deps.Audio,
		metrics:     deps.Metrics,
		userID:      deps.UserID,
		cfg:         deps.Config,
		now:         deps.Now,
		ctx:         ctx,
		cancel:      cancel,
		buffer:      NewContextBuffer(deps.Config.ContextCapacity),
		window:      newWindowAccumulator(deps.Config.AudioWindowSeconds, deps.Config.SampleRate),
		tracker:     &TurnTakingTracker{},
		frames:      make(chan []byte, 256),
		writerErrCh: make(chan error, 1),
	}
	s.relay = NewTranscriptionRelay(deps.STT, deps.STTOpts, s.logger)
	s.tasks = NewCoordinator(ctx, s.logger, deps.Metrics)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Run drives the session until the connection drops, the client ends the
// chat, or parent is canceled. It always leaves the session Closed.
func (s *Session) Run(parent context.Context) error {
	defer s.cancel()
	s.startedAt = s.now()

	if err := s.connect(parent); err != nil {
		_ = s.conn.Close()
		s.state.Store(int32(StateClosed))
		return err
	}

	s.metrics.RecordSessionStart()
	s.state.Store(int32(StateActive))

	go func() {
		w := &outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			frames:       s.frames,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
		}
		s.writerErrCh <- w.Run()
	}()

	readCh := make(chan inboundFrame, 64)
	go s.readLoop(readCh)

	s.send(protocol.EncodeHistory(s.buffer.Snapshot()))

	status := "closed"
	var runErr error

loop:
	for {
		select {
		case <-parent.Done():
			status = "shutdown"
			break loop
		case err := <-s.writerErrCh:
			s.writerDone = true
			if err != nil {
				s.logger.Warn("writer failed", "error", err)
				status = "write_error"
				runErr = err
			}
			break loop
		case text := <-s.relay.Results():
			s.handleUtterance(text)
		case frame := <-readCh:
			if frame.err != nil {
				if !websocket.IsCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("read failed", "error", frame.err)
				}
				status = "disconnected"
				break loop
			}
			if done := s.dispatch(frame.data); done {
				status = "ended"
				break loop
			}
		}
	}

	s.disconnect(status)
	return runErr
}

// connect resolves the persisted session and seeds the context buffer with
// the greeting plus replayed history.
func (s *Session) connect(ctx context.Context) error {
	record, err := s.store.GetOrCreateActiveSession(ctx, s.userID, s.cfg.Source)
	if err != nil {
		return err
	}
	s.record = record
	s.sessionOpen = true

	s.buffer.Append(types.Turn{Role: types.RoleAssistant, Text: s.cfg.Greeting, At: s.now()})

	if s.cfg.HistoryLimit > 0 {
		history, err := s.store.RecentMessages(ctx, record.ID, s.cfg.HistoryLimit)
		if err != nil {
			s.logger.Warn("history replay failed", "error", err)
		}
		for _, turn := range history {
			s.buffer.Append(turn)
		}
	}
	return nil
}

// dispatch handles one decoded inbound frame. It returns true when the
// client asked to end the chat.
func (s *Session) dispatch(data []byte) bool {
	ev, err := protocol.DecodeClientEvent(data)
	if err != nil {
		s.logger.Debug("ignoring frame", "error", err)
		return false
	}

	switch ev := ev.(type) {
	case protocol.OverlappedSpeech:
		s.tracker.RecordOverlap()
	case protocol.AudioData:
		s.handleAudioData(ev)
	case protocol.Transcription:
		s.handleUtterance(ev.Text)
	case protocol.ToggleStream:
		s.handleToggle(ev.Command)
	case protocol.EndChat:
		s.relay.Stop()
		s.closeRecord()
		return true
	}
	return false
}

func (s *Session) handleToggle(command string) {
	switch command {
	case "start":
		if err := s.relay.Start(s.ctx); err != nil {
			s.logger.Warn("recognition start failed", "error", err)
			s.metrics.RecordSpeechFailure("recognition_start")
		}
	case "stop":
		s.relay.Stop()
	}
}

func (s *Session) handleAudioData(ev protocol.AudioData) {
	s.metrics.RecordAudioBytes("in", len(ev.Data))

	if err := s.relay.SendAudio(s.ctx, ev.Data); err != nil {
		s.logger.Warn("recognition send failed", "error", err)
		s.metrics.RecordSpeechFailure("recognition_send")
	}

	window := s.window.Append(ev.Data, ev.SampleRate)
	if window == nil {
		return
	}

	// Analysis sees the accumulator as it stood when the window filled; the
	// recurrence below only shapes future windows.
	rate := s.tracker.OverlapRatio()
	s.tracker.CompleteWindow()
	w := *window
	s.tasks.Fire("audio_biomarkers", func(ctx context.Context) error {
		scores := s.audio.Biomarkers(w, rate)
		if len(scores) == 0 {
			return nil
		}
		s.echoScores(protocol.EncodeAudioScores, scores)
		return s.store.AddBiomarkersBulk(ctx, s.record.ID, scores)
	})
}

// handleUtterance runs one full conversation turn: echo the user's words,
// generate and emit the reply, then defer persistence, analysis, and speech
// synthesis.
func (s *Session) handleUtterance(text string) {
	if text == "" {
		return
	}
	started := s.now()

	userTurn := types.Turn{Role: types.RoleUser, Text: text, At: started}
	s.send(protocol.EncodeUserUtterance(text, started))
	s.buffer.Append(userTurn)
	s.firePersistTurn(userTurn)

	// The one synchronous await in the reply path.
	reply := s.gen.Generate(s.ctx, s.buffer.Snapshot())

	at := s.now()
	assistantTurn := types.Turn{Role: types.RoleAssistant, Text: reply, At: at}
	s.send(protocol.EncodeAssistantReply(reply, at))
	s.buffer.Append(assistantTurn)
	s.firePersistTurn(assistantTurn)
	s.metrics.RecordTurn(at.Sub(started))

	// Text analysis sees the completed exchange, reply included.
	snapshot := s.buffer.Snapshot()
	s.tasks.Fire("text_biomarkers", func(ctx context.Context) error {
		scores := s.text.Biomarkers(snapshot)
		if len(scores) == 0 {
			return nil
		}
		s.echoScores(protocol.EncodeBiomarkerScores, scores)
		return s.store.AddBiomarkersBulk(ctx, s.record.ID, scores)
	})

	s.tasks.Fire("speech_synthesis", func(ctx context.Context) error {
		audio, err := s.ttsProv.Synthesize(ctx, reply, s.ttsOpts)
		if err != nil {
			s.metrics.RecordSpeechFailure("synthesis")
			return core.NewSpeechError("synthesis", err)
		}
		for _, frame := range Chunk(audio, s.cfg.FrameSize) {
			s.send(protocol.EncodeAudioChunk(frame))
		}
		s.metrics.RecordAudioBytes("out", len(audio))
		return nil
	})
}

func (s *Session) firePersistTurn(turn types.Turn) {
	s.tasks.Fire("persist_message", func(ctx context.Context) error {
		return s.store.AddMessage(ctx, s.record.ID, turn)
	})
}

// echoScores forwards scores to the client, keeping only the kinds the
// session opted into.
func (s *Session) echoScores(encode func([]types.BiomarkerScore) []byte, scores []types.BiomarkerScore) {
	if len(s.cfg.EchoBiomarkers) == 0 {
		return
	}
	var echo []types.BiomarkerScore
	for _, score := range scores {
		if _, ok := s.cfg.EchoBiomarkers[score.Kind]; ok {
			echo = append(echo, score)
		}
	}
	if len(echo) > 0 {
		s.send(encode(echo))
	}
}

// send queues one frame for the writer, giving up if the session is
// shutting down.
func (s *Session) send(frame []byte) {
	select {
	case s.frames <- frame:
	case <-s.ctx.Done():
	}
}

// closeRecord stamps the persisted session closed. Safe to call twice.
func (s *Session) closeRecord() {
	if !s.sessionOpen {
		return
	}
	s.sessionOpen = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CloseSession(ctx, s.record.ID); err != nil {
		s.logger.Warn("session close failed", "error", err)
	}
}

// disconnect tears the session down: close the persisted record, stop the
// relay, cancel and await background tasks, flush the writer, and reset all
// in-memory state.
func (s *Session) disconnect(status string) {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing)) {
			return
		}
	}

	s.closeRecord()
	s.relay.Stop()

	// Cancel before waiting on tasks: a task blocked queueing an outbound
	// frame only unblocks on the session context.
	s.cancel()
	s.tasks.Shutdown()

	if !s.writerDone {
		select {
		case <-s.writerErrCh:
		case <-time.After(time.Second):
		}
	}

	s.buffer.Reset()
	s.window.Reset()
	s.tracker.Reset()

	s.metrics.RecordSessionEnd(status, s.now().Sub(s.startedAt))
	s.state.Store(int32(StateClosed))
	s.logger.Info("session closed", "status", status, "session_id", s.record.ID)
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}
