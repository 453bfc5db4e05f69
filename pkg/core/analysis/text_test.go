package analysis

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

func testAnalyzer(t *testing.T) *TextAnalyzer {
	t.Helper()
	lex, err := LoadLexicons("")
	if err != nil {
		t.Fatalf("LoadLexicons: %v", err)
	}
	a := NewTextAnalyzer(lex)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func userTurn(text string) types.Turn {
	return types.Turn{Role: types.RoleUser, Text: text}
}

func scoreByKind(t *testing.T, scores []types.BiomarkerScore, kind string) types.BiomarkerScore {
	t.Helper()
	for _, s := range scores {
		if s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no score of kind %q in %v", kind, scores)
	return types.BiomarkerScore{}
}

func TestBiomarkers_SentimentLabels(t *testing.T) {
	a := testAnalyzer(t)

	cases := []struct {
		text string
		want string
	}{
		{"I feel happy and grateful, today was wonderful", "Positive"},
		{"I am sad and lonely and everything is terrible", "Negative"},
		{"the meeting is at noon", "Neutral"},
	}
	for _, tc := range cases {
		scores := a.Biomarkers([]types.Turn{userTurn(tc.text)})
		got := scoreByKind(t, scores, "sentiment").Value
		if got != tc.want {
			t.Fatalf("sentiment(%q)=%q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestBiomarkers_IgnoresAssistantTurns(t *testing.T) {
	a := testAnalyzer(t)

	scores := a.Biomarkers([]types.Turn{
		{Role: types.RoleAssistant, Text: "wonderful amazing fantastic"},
		userTurn("the meeting is at noon"),
	})
	if got := scoreByKind(t, scores, "sentiment").Value; got != "Neutral" {
		t.Fatalf("sentiment=%q, want Neutral (assistant text must not count)", got)
	}
}

func TestBiomarkers_TopicsTopThree(t *testing.T) {
	a := testAnalyzer(t)

	scores := a.Biomarkers([]types.Turn{
		userTurn("garden garden garden robot robot weather and the and the sky"),
	})
	got := scoreByKind(t, scores, "topics").Value
	if got != "garden, robot, weather" {
		t.Fatalf("topics=%q, want %q", got, "garden, robot, weather")
	}
}

func TestBiomarkers_VADAverages(t *testing.T) {
	a := testAnalyzer(t)

	scores := a.Biomarkers([]types.Turn{userTurn("happy happy sad")})
	raw := scoreByKind(t, scores, "vad").Value

	var vad map[string]float64
	if err := json.Unmarshal([]byte(raw), &vad); err != nil {
		t.Fatalf("vad value is not JSON: %v", err)
	}
	// happy=(0.89,0.68,0.71), sad=(0.12,0.31,0.25); mean of {happy,happy,sad}.
	wantValence := (0.89 + 0.89 + 0.12) / 3
	if diff := vad["valence"] - wantValence; diff > 0.001 || diff < -0.001 {
		t.Fatalf("valence=%v, want ~%v", vad["valence"], wantValence)
	}
}

func TestBiomarkers_NoVADScoreWithoutMatches(t *testing.T) {
	a := testAnalyzer(t)

	scores := a.Biomarkers([]types.Turn{userTurn("xylophone qwerty")})
	for _, s := range scores {
		if s.Kind == "vad" {
			t.Fatalf("unexpected vad score %v", s)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, WORLD! it's 42 degrees")
	want := []string{"hello", "world", "it", "s", "degrees"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("tokenize=%v, want %v", got, want)
	}
}
