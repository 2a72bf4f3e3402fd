package translation

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/BurntSushi/toml"
)

//go:embed glossary.toml
var glossaryTOML string

type glossaryFile struct {
	Term []map[string]string `toml:"term"`
}

type langPair struct{ from, to string }

// Glossary maps phrases between languages. English acts as the pivot for
// pairs without direct entries.
type Glossary struct {
	index   map[langPair]map[string]string
	longest int
}

// DefaultGlossary returns the embedded glossary.
var DefaultGlossary = sync.OnceValue(func() *Glossary {
	g, err := ParseGlossary(glossaryTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded glossary: %v", err))
	}
	return g
})

// ParseGlossary reads a glossary in TOML form.
func ParseGlossary(data string) (*Glossary, error) {
	var file glossaryFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}

	g := &Glossary{index: make(map[langPair]map[string]string), longest: 1}
	for i, term := range file.Term {
		if len(term) < 2 {
			return nil, fmt.Errorf("glossary term %d needs at least two languages", i+1)
		}
		for from, src := range term {
			for to, dst := range term {
				if from == to {
					continue
				}
				p := langPair{from, to}
				if g.index[p] == nil {
					g.index[p] = make(map[string]string)
				}
				key := normalizePhrase(src)
				// The first entry for a phrase wins.
				if _, exists := g.index[p][key]; !exists {
					g.index[p][key] = strings.TrimSpace(dst)
				}
				if n := len(strings.Fields(key)); n > g.longest {
					g.longest = n
				}
			}
		}
	}
	return g, nil
}

// Lookup translates one phrase.
func (g *Glossary) Lookup(from, to, phrase string) (string, bool) {
	key := normalizePhrase(phrase)
	if v, ok := g.index[langPair{from, to}][key]; ok {
		return v, true
	}
	if from != "en" && to != "en" {
		if pivot, ok := g.index[langPair{from, "en"}][key]; ok {
			if v, ok := g.index[langPair{"en", to}][normalizePhrase(pivot)]; ok {
				return v, true
			}
		}
	}
	return "", false
}

// Render translates text word by word, preferring the longest known phrase.
// Unknown words are transliterated when the target is English and kept
// otherwise. It returns the number of words covered and the total.
func (g *Glossary) Render(from, to, text string) (string, int, int) {
	if v, ok := g.Lookup(from, to, text); ok {
		return v, 1, 1
	}

	toks := tokenize(text)
	var (
		b     strings.Builder
		hits  int
		total int
	)
	for i := 0; i < len(toks); {
		if !toks[i].word {
			b.WriteString(toks[i].text)
			i++
			continue
		}

		matched := false
		for n := g.longest; n >= 1; n-- {
			phrase, next, ok := phraseAt(toks, i, n)
			if !ok {
				continue
			}
			if v, found := g.Lookup(from, to, phrase); found {
				b.WriteString(v)
				hits += n
				total += n
				i = next
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		word := toks[i].text
		if to == "en" {
			word = Transliterate(word)
		}
		b.WriteString(word)
		total++
		i++
	}
	return b.String(), hits, total
}

type token struct {
	text string
	word bool
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// tokenize splits text into alternating word and separator tokens.
func tokenize(text string) []token {
	var toks []token
	var cur strings.Builder
	curWord := false
	for _, r := range text {
		w := isWordRune(r)
		if cur.Len() > 0 && w != curWord {
			toks = append(toks, token{text: cur.String(), word: curWord})
			cur.Reset()
		}
		curWord = w
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		toks = append(toks, token{text: cur.String(), word: curWord})
	}
	return toks
}

// phraseAt joins n words starting at token i when only spaces separate them.
func phraseAt(toks []token, i, n int) (string, int, bool) {
	words := []string{toks[i].text}
	j := i + 1
	for len(words) < n {
		if j+1 >= len(toks) || strings.TrimSpace(toks[j].text) != "" || !toks[j+1].word {
			return "", 0, false
		}
		words = append(words, toks[j+1].text)
		j += 2
	}
	return strings.Join(words, " "), j, true
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
