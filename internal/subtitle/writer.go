package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// FormatSRT renders cues as SubRip text. SRT timestamps use a comma before
// the milliseconds.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n", cue.Index)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(cue.Start, ","), formatTimestamp(cue.End, ","))
		b.WriteString(cue.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatVTT renders cues as WebVTT. VTT timestamps use a dot before the
// milliseconds and the file opens with the WEBVTT header.
func FormatVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, cue := range cues {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(cue.Start, "."), formatTimestamp(cue.End, "."))
		b.WriteString(cue.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func formatTimestamp(d time.Duration, msSep string) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, ms)
}
