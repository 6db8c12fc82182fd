package translate

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the ISO 639-1 code of text, falling back to English
// when detection is unreliable or the language has no two-letter code.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "en"
	}
	code := info.Lang.Iso6391()
	if code == "" {
		// map three-letter codes down where the matcher knows them
		tag, err := language.Parse(info.Lang.Iso6393())
		if err != nil {
			return "en"
		}
		base, _ := tag.Base()
		code = base.String()
		if len(code) != 2 {
			return "en"
		}
	}
	return code
}
