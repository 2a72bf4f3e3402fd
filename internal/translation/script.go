package translation

import (
	"strings"
	"unicode"
)

// scripts maps each supported language to its writing system.
var scripts = map[string]*unicode.RangeTable{
	"en": unicode.Latin,
	"te": unicode.Telugu,
	"hi": unicode.Devanagari,
	"ta": unicode.Tamil,
	"kn": unicode.Kannada,
	"ml": unicode.Malayalam,
}

// scriptBase is the first code point of each Brahmic block. All of them
// follow the same layout, so one offset table transliterates them all.
var scriptBase = map[string]rune{
	"hi": 0x0900,
	"ta": 0x0B80,
	"te": 0x0C00,
	"kn": 0x0C80,
	"ml": 0x0D00,
}

// ScriptFor returns the writing system used by lang.
func ScriptFor(lang string) *unicode.RangeTable {
	return scripts[lang]
}

// HasScript reports whether text contains at least one letter of lang's script.
func HasScript(text, lang string) bool {
	table, ok := scripts[lang]
	if !ok {
		return false
	}
	return strings.IndexFunc(text, func(r rune) bool { return unicode.Is(table, r) }) >= 0
}

// detectScript counts letters per supported script and returns the winner
// with its share of all letters.
func isLetter(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// hasLetters reports whether text has anything a detector could work on.
func hasLetters(text string) bool {
	return strings.ContainsFunc(text, isLetter)
}

func detectScript(text string) (string, float64) {
	counts := map[string]int{}
	total := 0
	for _, r := range text {
		if !isLetter(r) {
			continue
		}
		total++
		for _, lang := range Supported {
			if unicode.Is(scripts[lang], r) {
				counts[lang]++
				break
			}
		}
	}
	if total == 0 {
		return "", 0
	}

	best, bestN := "", 0
	for _, lang := range Supported {
		if counts[lang] > bestN {
			best, bestN = lang, counts[lang]
		}
	}
	if best == "" {
		return "", 0
	}
	return best, float64(bestN) / float64(total)
}

// Brahmic code point offsets within a block.
var (
	independentVowels = map[rune]string{
		0x05: "a", 0x06: "aa", 0x07: "i", 0x08: "ii", 0x09: "u", 0x0A: "uu",
		0x0B: "ru", 0x0C: "lu", 0x0E: "e", 0x0F: "e", 0x10: "ai",
		0x12: "o", 0x13: "o", 0x14: "au", 0x60: "ruu",
	}
	consonants = map[rune]string{
		0x15: "k", 0x16: "kh", 0x17: "g", 0x18: "gh", 0x19: "ng",
		0x1A: "ch", 0x1B: "chh", 0x1C: "j", 0x1D: "jh", 0x1E: "ny",
		0x1F: "t", 0x20: "th", 0x21: "d", 0x22: "dh", 0x23: "n",
		0x24: "t", 0x25: "th", 0x26: "d", 0x27: "dh", 0x28: "n", 0x29: "n",
		0x2A: "p", 0x2B: "ph", 0x2C: "b", 0x2D: "bh", 0x2E: "m",
		0x2F: "y", 0x30: "r", 0x31: "r", 0x32: "l", 0x33: "l", 0x34: "zh",
		0x35: "v", 0x36: "sh", 0x37: "sh", 0x38: "s", 0x39: "h",
	}
	vowelSigns = map[rune]string{
		0x3E: "aa", 0x3F: "i", 0x40: "ii", 0x41: "u", 0x42: "uu",
		0x43: "ru", 0x44: "ruu", 0x46: "e", 0x47: "e", 0x48: "ai",
		0x4A: "o", 0x4B: "o", 0x4C: "au", 0x56: "ai", 0x57: "au",
	}
)

const (
	offCandrabindu = 0x01
	offAnusvara    = 0x02
	offVisarga     = 0x03
	offNukta       = 0x3C
	offAvagraha    = 0x3D
	offVirama      = 0x4D
	offDigitZero   = 0x66
)

// Transliterate renders Indic text in plain Latin letters. Runes outside the
// supported Brahmic blocks pass through unchanged.
func Transliterate(text string) string {
	var b strings.Builder
	pendingA := false

	flush := func() {
		if pendingA {
			b.WriteByte('a')
			pendingA = false
		}
	}

	for _, r := range text {
		base, ok := blockOf(r)
		if !ok {
			flush()
			b.WriteRune(r)
			continue
		}
		off := r - base

		switch {
		case consonants[off] != "":
			flush()
			b.WriteString(consonants[off])
			pendingA = true
		case vowelSigns[off] != "":
			pendingA = false
			b.WriteString(vowelSigns[off])
		case off == offVirama:
			pendingA = false
		case off == offNukta:
		case off == offAnusvara || off == offCandrabindu:
			flush()
			b.WriteByte('m')
		case off == offVisarga:
			flush()
			b.WriteByte('h')
		case off == offAvagraha:
			flush()
			b.WriteByte('\'')
		case independentVowels[off] != "":
			flush()
			b.WriteString(independentVowels[off])
		case off >= offDigitZero && off <= offDigitZero+9:
			flush()
			b.WriteRune('0' + (off - offDigitZero))
		default:
			flush()
		}
	}
	flush()
	return b.String()
}

func blockOf(r rune) (rune, bool) {
	for _, base := range scriptBase {
		if r >= base && r < base+0x80 {
			return base, true
		}
	}
	return 0, false
}
