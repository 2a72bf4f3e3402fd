package audio

import (
	"fmt"
	"strings"
	"unicode"

	"codeberg.org/snonux/sahachari/internal/translation"
)

// ValidateText checks that text is speakable in lang. Indic languages need
// at least one letter of their own script.
func ValidateText(text, lang string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	if lang == "en" {
		if strings.IndexFunc(text, unicode.IsLetter) < 0 {
			return fmt.Errorf("text must contain letters")
		}
		return nil
	}

	if translation.ScriptFor(lang) == nil {
		return fmt.Errorf("unsupported language %q", lang)
	}
	if !translation.HasScript(text, lang) {
		return fmt.Errorf("text must contain %s characters", scriptName(lang))
	}
	return nil
}

func scriptName(lang string) string {
	for _, l := range translation.SupportedLanguages() {
		if l.Code == lang {
			return l.Name
		}
	}
	return lang
}
