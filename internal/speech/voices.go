package speech

import "golang.org/x/text/language"

// Known narration voices exposed by the gateway.
const (
	VoiceAlloy = "alloy"
	VoiceFable = "fable"
	VoiceNova  = "nova"
)

// voiceTags are the languages with a dedicated narration voice. Order matters:
// the matcher resolves regional variants (es-MX, hi-IN) to these bases.
var voiceTags = []language.Tag{
	language.Hindi,
	language.Spanish,
}

var voiceByTag = map[language.Tag]string{
	language.Hindi:   VoiceFable,
	language.Spanish: VoiceAlloy,
}

var voiceMatcher = language.NewMatcher(voiceTags)

// VoiceForLanguage picks the narration voice for a language code. Languages
// without a dedicated voice get the fallback.
func VoiceForLanguage(lang, fallback string) string {
	if fallback == "" {
		fallback = VoiceNova
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fallback
	}
	_, idx, conf := voiceMatcher.Match(tag)
	if conf < language.High {
		return fallback
	}
	return voiceByTag[voiceTags[idx]]
}
