package analysis

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

// AudioAnalyzer derives acoustic biomarkers from one audio window of 16-bit
// little-endian mono PCM, plus the session's running overlap ratio.
type AudioAnalyzer struct {
	now func() time.Time
}

// NewAudioAnalyzer creates an AudioAnalyzer.
func NewAudioAnalyzer() *AudioAnalyzer {
	return &AudioAnalyzer{now: time.Now}
}

// Biomarkers computes window statistics. overlapPerMinute is the
// turn-taking accumulator at flush time.
func (a *AudioAnalyzer) Biomarkers(w types.AudioWindow, overlapPerMinute float64) []types.BiomarkerScore {
	at := a.now()
	energy, zcr, peak := pcmStats(w.PCM)

	return []types.BiomarkerScore{
		{Kind: "audio_energy", Value: formatFloat(energy), At: at},
		{Kind: "audio_zcr", Value: formatFloat(zcr), At: at},
		{Kind: "audio_peak", Value: formatFloat(peak), At: at},
		{Kind: "overlap_per_minute", Value: formatFloat(overlapPerMinute), At: at},
	}
}

// pcmStats returns RMS energy, zero-crossing rate, and peak amplitude, each
// normalized to [0, 1].
func pcmStats(pcm []byte) (energy, zcr, peak float64) {
	n := len(pcm) / 2
	if n == 0 {
		return 0, 0, 0
	}

	var sumSquares float64
	var crossings int
	var prev int16
	var maxAbs float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(s) / math.MaxInt16
		sumSquares += v * v
		if abs := math.Abs(v); abs > maxAbs {
			maxAbs = abs
		}
		if i > 0 && (s >= 0) != (prev >= 0) {
			crossings++
		}
		prev = s
	}

	energy = math.Sqrt(sumSquares / float64(n))
	if n > 1 {
		zcr = float64(crossings) / float64(n-1)
	}
	return energy, zcr, maxAbs
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(round3(f), 'f', -1, 64)
}
