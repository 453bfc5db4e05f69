package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

// FallbackUtterance is returned whenever the completion service fails. The
// conversation must never stall on a generation failure.
const FallbackUtterance = "I'm sorry, I encountered an error while processing your request."

const (
	turnEnd      = "<|end|>"
	assistantTag = "<|assistant|>"
)

// DefaultSystemPreamble conditions the assistant for short spoken replies.
const DefaultSystemPreamble = "You are a friendly voice assistant. Keep replies short, conversational, and suitable for speech."

// Generator builds a structured prompt from a context snapshot and drives the
// completion client, substituting a fixed fallback on any failure.
type Generator struct {
	client     CompletionClient
	preamble   string
	maxTokens  int
	logger     *slog.Logger
	onFallback func()
}

// NewGenerator creates a Generator. A zero maxTokens falls back to 128.
func NewGenerator(client CompletionClient, preamble string, maxTokens int, logger *slog.Logger) *Generator {
	if preamble == "" {
		preamble = DefaultSystemPreamble
	}
	if maxTokens <= 0 {
		maxTokens = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, preamble: preamble, maxTokens: maxTokens, logger: logger}
}

// SetFallbackHook registers fn to run each time a failure is replaced with
// the fallback utterance. Used for failure metrics.
func (g *Generator) SetFallbackHook(fn func()) {
	g.onFallback = fn
}

func (g *Generator) fallback() string {
	if g.onFallback != nil {
		g.onFallback()
	}
	return FallbackUtterance
}

// Generate produces the assistant's next utterance for the given context
// snapshot. It never returns an error: any failure in the completion call is
// logged and replaced with FallbackUtterance.
func (g *Generator) Generate(ctx context.Context, turns []types.Turn) string {
	prompt := BuildPrompt(g.preamble, turns)

	out, err := g.client.Complete(ctx, prompt, g.maxTokens, []string{turnEnd, "\n"})
	if err != nil {
		g.logger.Error("generation failed, using fallback", "error", err)
		return g.fallback()
	}

	// The service echoes the prompt; the reply is everything after the last
	// assistant tag.
	if idx := strings.LastIndex(out, assistantTag); idx >= 0 {
		out = out[idx+len(assistantTag):]
	}
	reply := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(out), turnEnd))
	if reply == "" {
		g.logger.Warn("generation produced empty reply, using fallback")
		return g.fallback()
	}
	return reply
}

// BuildPrompt renders the system preamble, every turn in the snapshot, and a
// trailing cue inviting the assistant's turn.
func BuildPrompt(preamble string, turns []types.Turn) string {
	var b strings.Builder
	b.WriteString("<|system|>\n")
	b.WriteString(preamble)
	b.WriteString(turnEnd)
	for _, t := range turns {
		b.WriteString("\n<|")
		b.WriteString(string(t.Role))
		b.WriteString("|>\n")
		b.WriteString(t.Text)
		b.WriteString(turnEnd)
	}
	b.WriteString("\n")
	b.WriteString(assistantTag)
	b.WriteString("\n")
	return b.String()
}
