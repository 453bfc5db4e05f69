// Package analysis computes behavioral signals (sentiment, topics, affect,
// acoustic statistics) from conversation snapshots and audio windows. Its
// lookup tables are loaded once at process start and injected; nothing in
// this package reaches for ambient global state.
package analysis

import (
	"bufio"
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed data/sentiment.txt data/stopwords.txt data/vad.csv
var lexiconFS embed.FS

// VADEntry is a valence/arousal/dominance triple for one lexicon term.
type VADEntry struct {
	Valence   float64
	Arousal   float64
	Dominance float64
}

// Lexicons is the process-wide immutable lookup data used by TextAnalyzer.
type Lexicons struct {
	Sentiment map[string]float64
	Stopwords map[string]struct{}
	VAD       map[string]VADEntry
}

// LoadLexicons loads the embedded defaults. If vadPath is non-empty, the
// embedded VAD table is replaced by the CSV at that path
// (term,valence,arousal,dominance with a header row).
func LoadLexicons(vadPath string) (*Lexicons, error) {
	lex := &Lexicons{
		Sentiment: make(map[string]float64),
		Stopwords: make(map[string]struct{}),
		VAD:       make(map[string]VADEntry),
	}

	if err := loadSentiment(lex.Sentiment); err != nil {
		return nil, err
	}
	if err := loadStopwords(lex.Stopwords); err != nil {
		return nil, err
	}

	if vadPath != "" {
		f, err := os.Open(vadPath)
		if err != nil {
			return nil, fmt.Errorf("open vad lexicon %q: %w", vadPath, err)
		}
		defer f.Close()
		if err := loadVAD(lex.VAD, f); err != nil {
			return nil, fmt.Errorf("vad lexicon %q: %w", vadPath, err)
		}
		return lex, nil
	}

	f, err := lexiconFS.Open("data/vad.csv")
	if err != nil {
		return nil, fmt.Errorf("embedded vad lexicon: %w", err)
	}
	defer f.Close()
	if err := loadVAD(lex.VAD, f); err != nil {
		return nil, fmt.Errorf("embedded vad lexicon: %w", err)
	}
	return lex, nil
}

func loadSentiment(into map[string]float64) error {
	f, err := lexiconFS.Open("data/sentiment.txt")
	if err != nil {
		return fmt.Errorf("sentiment lexicon: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		into[strings.ToLower(fields[0])] = score
	}
	return scanner.Err()
}

func loadStopwords(into map[string]struct{}) error {
	f, err := lexiconFS.Open("data/stopwords.txt")
	if err != nil {
		return fmt.Errorf("stopword list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		into[word] = struct{}{}
	}
	return scanner.Err()
}

func loadVAD(into map[string]VADEntry, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if first {
			first = false
			if strings.EqualFold(rec[0], "term") || strings.EqualFold(rec[0], "word") {
				continue
			}
		}
		v, errV := strconv.ParseFloat(rec[1], 64)
		a, errA := strconv.ParseFloat(rec[2], 64)
		d, errD := strconv.ParseFloat(rec[3], 64)
		if errV != nil || errA != nil || errD != nil {
			continue
		}
		into[strings.ToLower(strings.TrimSpace(rec[0]))] = VADEntry{Valence: v, Arousal: a, Dominance: d}
	}
}
