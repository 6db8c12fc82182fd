package subtitle

import "time"

// Cue is one subtitle entry with its display window.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}
