package subtitle

import (
	"strings"
	"time"
	"unicode"
)

const (
	// baseWordsPerMinute approximates narration pace at speed 1.0.
	baseWordsPerMinute = 150.0
	// maxCueRunes keeps a cue readable on screen.
	maxCueRunes = 120
	// minCueDuration avoids cues that flash by.
	minCueDuration = time.Second
)

// Build slices narration text into cues and assigns each a display window
// estimated from word count and the narration speed multiplier. Timings are
// estimates tied to the synthesized pace, not a transcript alignment.
func Build(text string, speed float64) []Cue {
	if speed <= 0 {
		speed = 1.0
	}

	pieces := splitCues(text)
	cues := make([]Cue, 0, len(pieces))
	cursor := time.Duration(0)
	for i, piece := range pieces {
		words := len(strings.Fields(piece))
		if words == 0 {
			continue
		}
		dur := time.Duration(float64(words) / (baseWordsPerMinute * speed) * float64(time.Minute))
		if dur < minCueDuration {
			dur = minCueDuration
		}
		cues = append(cues, Cue{
			Index: i + 1,
			Start: cursor,
			End:   cursor + dur,
			Text:  piece,
		})
		cursor += dur
	}
	return cues
}

// splitCues breaks text at sentence ends, then wraps any sentence longer than
// maxCueRunes at whitespace.
func splitCues(text string) []string {
	sentences := splitSentences(text)

	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		runes := []rune(s)
		for len(runes) > maxCueRunes {
			cut := maxCueRunes
			for i := maxCueRunes - 1; i > maxCueRunes/2; i-- {
				if unicode.IsSpace(runes[i]) {
					cut = i
					break
				}
			}
			out = append(out, strings.TrimSpace(string(runes[:cut])))
			runes = runes[cut:]
		}
		if piece := strings.TrimSpace(string(runes)); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '।' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
