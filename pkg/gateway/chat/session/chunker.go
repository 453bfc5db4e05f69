package session

// Chunk splits a synthesized audio buffer into ordered frames of at most
// frameSize bytes. The final frame may be shorter. Frames carry no sequence
// numbers; the transport preserves send order and the receiver concatenates
// in arrival order.
func Chunk(audio []byte, frameSize int) [][]byte {
	if frameSize <= 0 || len(audio) == 0 {
		return nil
	}
	frames := make([][]byte, 0, (len(audio)+frameSize-1)/frameSize)
	for start := 0; start < len(audio); start += frameSize {
		end := start + frameSize
		if end > len(audio) {
			end = len(audio)
		}
		frames = append(frames, audio[start:end])
	}
	return frames
}
