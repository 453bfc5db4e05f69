package session

import (
	"bytes"
	"testing"
)

func TestChunk_SplitsAndReassembles(t *testing.T) {
	audio := make([]byte, 20000)
	for i := range audio {
		audio[i] = byte(i)
	}

	frames := Chunk(audio, 8192)

	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	wantSizes := []int{8192, 8192, 3616}
	var joined []byte
	for i, frame := range frames {
		if len(frame) != wantSizes[i] {
			t.Fatalf("len(frames[%d]) = %d, want %d", i, len(frame), wantSizes[i])
		}
		joined = append(joined, frame...)
	}
	if !bytes.Equal(joined, audio) {
		t.Fatal("concatenated frames do not reproduce the original buffer")
	}
}

func TestChunk_ExactMultiple(t *testing.T) {
	frames := Chunk(make([]byte, 16384), 8192)
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
}

func TestChunk_Empty(t *testing.T) {
	if got := Chunk(nil, 8192); got != nil {
		t.Fatalf("Chunk(nil) = %v, want nil", got)
	}
}

func TestChunk_SmallerThanFrame(t *testing.T) {
	frames := Chunk(make([]byte, 100), 8192)
	if len(frames) != 1 || len(frames[0]) != 100 {
		t.Fatalf("frames = %d x %d, want 1 x 100", len(frames), len(frames[0]))
	}
}
