package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoiceForLanguage(t *testing.T) {
	assert.Equal(t, VoiceFable, VoiceForLanguage("hi", VoiceNova))
	assert.Equal(t, VoiceAlloy, VoiceForLanguage("es", VoiceNova))
	assert.Equal(t, VoiceNova, VoiceForLanguage("en", VoiceNova))
	assert.Equal(t, VoiceNova, VoiceForLanguage("fr", VoiceNova))
}

func TestVoiceForLanguageRegionalVariants(t *testing.T) {
	assert.Equal(t, VoiceAlloy, VoiceForLanguage("es-MX", VoiceNova))
	assert.Equal(t, VoiceFable, VoiceForLanguage("hi-IN", VoiceNova))
}

func TestVoiceForLanguageBadInput(t *testing.T) {
	assert.Equal(t, VoiceNova, VoiceForLanguage("???", VoiceNova))
	assert.Equal(t, VoiceNova, VoiceForLanguage("", ""))
}
