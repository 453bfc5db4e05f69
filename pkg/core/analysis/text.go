package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

const (
	sentimentPositiveThreshold = 0.05
	sentimentNegativeThreshold = -0.05
	topicCount                 = 3
)

// TextAnalyzer derives utterance-level biomarkers from a conversation
// snapshot: a sentiment label, the dominant topic terms, and mean
// valence/arousal/dominance scores.
type TextAnalyzer struct {
	lex *Lexicons
	now func() time.Time
}

// NewTextAnalyzer creates a TextAnalyzer over the given lexicons.
func NewTextAnalyzer(lex *Lexicons) *TextAnalyzer {
	return &TextAnalyzer{lex: lex, now: time.Now}
}

// Biomarkers scores the user's side of the snapshot. Assistant turns are
// excluded so the signals reflect the person, not the model.
func (a *TextAnalyzer) Biomarkers(turns []types.Turn) []types.BiomarkerScore {
	var parts []string
	for _, t := range turns {
		if t.Role == types.RoleUser {
			parts = append(parts, t.Text)
		}
	}
	text := strings.Join(parts, " ")
	at := a.now()

	scores := []types.BiomarkerScore{
		{Kind: "sentiment", Value: a.sentimentLabel(text), At: at},
		{Kind: "topics", Value: a.topics(text), At: at},
	}
	if vad, ok := a.vadScores(text); ok {
		scores = append(scores, types.BiomarkerScore{Kind: "vad", Value: vad, At: at})
	}
	return scores
}

func (a *TextAnalyzer) sentimentLabel(text string) string {
	var sum float64
	var matched int
	for _, tok := range tokenize(text) {
		if score, ok := a.lex.Sentiment[tok]; ok {
			sum += score
			matched++
		}
	}
	if matched == 0 {
		return "Neutral"
	}
	// Normalized compound in (-1, 1).
	compound := sum / math.Sqrt(sum*sum+15)
	switch {
	case compound >= sentimentPositiveThreshold:
		return "Positive"
	case compound <= sentimentNegativeThreshold:
		return "Negative"
	default:
		return "Neutral"
	}
}

func (a *TextAnalyzer) topics(text string) string {
	counts := make(map[string]int)
	order := make(map[string]int)
	next := 0
	for _, tok := range tokenize(text) {
		if _, stop := a.lex.Stopwords[tok]; stop {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order[tok] = next
			next++
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return ""
	}

	terms := make([]string, 0, len(counts))
	for tok := range counts {
		terms = append(terms, tok)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return order[terms[i]] < order[terms[j]]
	})
	if len(terms) > topicCount {
		terms = terms[:topicCount]
	}
	return strings.Join(terms, ", ")
}

func (a *TextAnalyzer) vadScores(text string) (string, bool) {
	var v, ar, d float64
	var matched int
	for _, tok := range tokenize(text) {
		if entry, ok := a.lex.VAD[tok]; ok {
			v += entry.Valence
			ar += entry.Arousal
			d += entry.Dominance
			matched++
		}
	}
	if matched == 0 {
		return "", false
	}
	n := float64(matched)
	doc, err := json.Marshal(map[string]float64{
		"valence":   round3(v / n),
		"arousal":   round3(ar / n),
		"dominance": round3(d / n),
	})
	if err != nil {
		return "", false
	}
	return string(doc), true
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// tokenize lowercases and splits on non-letter runs, dropping anything that
// is not purely alphabetic.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
