package tts

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const geminiTTSModel = "gemini-2.5-flash-preview-tts"

// Gemini implements the TTS Provider using Gemini's native speech output.
// The model returns raw PCM as inline data.
type Gemini struct {
	apiKey string
	voice  string

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// NewGemini creates a Gemini TTS provider. The client is dialed lazily on
// first use. An empty voice defaults to "Kore".
func NewGemini(apiKey, voice string) *Gemini {
	if voice == "" {
		voice = "Kore"
	}
	return &Gemini{apiKey: apiKey, voice: voice}
}

// Name returns the provider identifier.
func (g *Gemini) Name() string { return "gemini" }

// Synthesize converts text to a raw PCM buffer. Gemini ignores the requested
// container format and always emits 24 kHz 16-bit PCM.
func (g *Gemini) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) ([]byte, error) {
	g.initOnce.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey})
	})
	if g.initErr != nil {
		return nil, fmt.Errorf("gemini client: %w", g.initErr)
	}

	voice := opts.Voice
	if voice == "" {
		voice = g.voice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, geminiTTSModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini synthesize: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini synthesize: response contains no audio")
}
