package pipeline

import "fmt"

// ConcatAudio merges per-chunk audio buffers into one stream by appending them
// in order. The buffers are raw provider output; no re-encoding happens here,
// so all chunks must come from the same synthesis settings. A single buffer is
// returned unchanged without copying.
func ConcatAudio(buffers [][]byte) ([]byte, error) {
	if len(buffers) == 0 {
		return nil, fmt.Errorf("no audio buffers to concatenate")
	}
	for i, buf := range buffers {
		if len(buf) == 0 {
			return nil, fmt.Errorf("audio chunk %d is empty", i)
		}
	}
	if len(buffers) == 1 {
		return buffers[0], nil
	}

	total := 0
	for _, buf := range buffers {
		total += len(buf)
	}
	merged := make([]byte, 0, total)
	for _, buf := range buffers {
		merged = append(merged, buf...)
	}
	return merged, nil
}
