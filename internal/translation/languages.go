package translation

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Supported lists the language codes the application handles.
var Supported = []string{"en", "te", "hi", "ta", "kn", "ml"}

// Language describes a supported language.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// SupportedLanguages returns the supported languages with English and
// native names.
func SupportedLanguages() []Language {
	names := display.English.Languages()
	out := make([]Language, 0, len(Supported))
	for _, code := range Supported {
		tag := language.MustParse(code)
		out = append(out, Language{
			Code:   code,
			Name:   names.Name(tag),
			Native: display.Self.Name(tag),
		})
	}
	return out
}

// NormalizeLanguage parses a BCP 47 tag such as "te-IN" or "TE" and returns
// the supported base code.
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("language is empty")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", code, err)
	}
	base, _ := tag.Base()
	for _, s := range Supported {
		if base.String() == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", code)
}
