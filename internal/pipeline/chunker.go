package pipeline

import (
	"strings"
	"unicode"
)

// sentenceEnders terminate a sentence for chunk-boundary purposes.
const sentenceEnders = ".!?"

// SplitText cuts text into chunks of at most limit runes, preferring to break
// at a sentence end, then at whitespace, and only then mid-word. A boundary is
// only taken when it lands past the halfway point of the window, so chunks
// never degenerate into slivers. Text that already fits is returned as a
// single chunk, byte for byte.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = 1
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		window := runes[:limit]
		cut := boundaryIndex(window)
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}

	// TrimSpace can empty a chunk made of pure whitespace
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// boundaryIndex returns the cut position within window: one past the last
// sentence end in the back half, else the last whitespace in the back half,
// else the full window.
func boundaryIndex(window []rune) int {
	half := len(window) / 2

	for i := len(window) - 1; i > half; i-- {
		if strings.ContainsRune(sentenceEnders, window[i]) {
			return i + 1
		}
	}
	for i := len(window) - 1; i > half; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return len(window)
}
