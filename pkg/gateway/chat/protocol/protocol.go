// Package protocol defines the websocket chat wire format: the closed set of
// client event types and the server frames sent back.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/voicebridge-ai/voicebridge/pkg/core"
	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

// CloseCodeUnauthenticated is sent before closing a socket that failed
// authentication.
const CloseCodeUnauthenticated = 4001

// timeLayout is the wall-clock stamp attached to transcript frames.
const timeLayout = "15:04:05"

// Client events. DecodeClientEvent returns exactly one of these.
type (
	// OverlappedSpeech reports the client detected the user speaking over
	// assistant playback.
	OverlappedSpeech struct{}

	// AudioData carries one microphone chunk, already base64-decoded.
	AudioData struct {
		Data       []byte
		SampleRate int
	}

	// Transcription carries text the client transcribed locally.
	Transcription struct {
		Text string
	}

	// EndChat asks the server to close the conversation.
	EndChat struct{}

	// ToggleStream starts or stops streaming transcription. The command
	// rides in the envelope's data field.
	ToggleStream struct {
		Command string // "start" or "stop"
	}
)

type clientEnvelope struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Text       string `json:"text,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// DecodeClientEvent parses one inbound frame. Unknown or malformed frames
// return a protocol error; callers drop those without closing the socket.
func DecodeClientEvent(data []byte) (any, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.NewProtocolError("malformed json")
	}
	typ := strings.TrimSpace(env.Type)

	switch typ {
	case "overlapped_speech":
		return OverlappedSpeech{}, nil
	case "audio_data":
		if env.Data == "" {
			return nil, core.NewProtocolError("audio_data without data")
		}
		pcm, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			return nil, core.NewProtocolError("audio_data bad base64")
		}
		return AudioData{Data: pcm, SampleRate: env.SampleRate}, nil
	case "transcription":
		return Transcription{Text: env.Text}, nil
	case "end_chat":
		return EndChat{}, nil
	case "toggle_stream":
		switch env.Data {
		case "start", "stop":
			return ToggleStream{Command: env.Data}, nil
		}
		return nil, core.NewProtocolError("toggle_stream bad command")
	case "":
		return nil, core.NewProtocolError("missing type")
	default:
		return nil, core.NewProtocolError("unknown type " + typ)
	}
}

// Server frames. Each Encode method produces one websocket text message.

type serverUtterance struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// EncodeUserUtterance echoes the user's recognized words back with a
// wall-clock stamp.
func EncodeUserUtterance(text string, at time.Time) []byte {
	return mustMarshal(serverUtterance{Type: "user_utt", Text: text, Time: at.UTC().Format(timeLayout)})
}

// EncodeAssistantReply carries the generated reply text.
func EncodeAssistantReply(text string, at time.Time) []byte {
	return mustMarshal(serverUtterance{Type: "llm_response", Text: text, Time: at.UTC().Format(timeLayout)})
}

type serverAudioChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// EncodeAudioChunk wraps one synthesized audio frame as base64.
func EncodeAudioChunk(frame []byte) []byte {
	return mustMarshal(serverAudioChunk{Type: "audio_chunk", Data: base64.StdEncoding.EncodeToString(frame)})
}

// Score is one biomarker entry in a scores frame.
type Score struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type serverScores struct {
	Type   string  `json:"type"`
	Scores []Score `json:"scores"`
}

// EncodeBiomarkerScores reports text-derived scores to the client.
func EncodeBiomarkerScores(scores []types.BiomarkerScore) []byte {
	return mustMarshal(serverScores{Type: "biomarker_scores", Scores: toWire(scores)})
}

// EncodeAudioScores reports acoustic window scores to the client.
func EncodeAudioScores(scores []types.BiomarkerScore) []byte {
	return mustMarshal(serverScores{Type: "audio_scores", Scores: toWire(scores)})
}

func toWire(scores []types.BiomarkerScore) []Score {
	out := make([]Score, 0, len(scores))
	for _, s := range scores {
		out = append(out, Score{Kind: s.Kind, Value: s.Value})
	}
	return out
}

type historyTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type serverHistory struct {
	Type  string        `json:"type"`
	Turns []historyTurn `json:"turns"`
}

// EncodeHistory replays the seeded conversation context on connect.
func EncodeHistory(turns []types.Turn) []byte {
	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{Role: string(t.Role), Text: t.Text})
	}
	return mustMarshal(serverHistory{Type: "history", Turns: out})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All frame types marshal without error.
		panic(err)
	}
	return data
}
