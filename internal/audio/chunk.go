package audio

import (
	"strings"
	"unicode/utf8"
)

// sentenceEnds are the separators text is preferably split at.
var sentenceEnds = []string{". ", "। ", "? ", "! ", "\n"}

// ChunkText splits text into pieces of at most size runes, breaking after
// sentence ends where possible and at spaces otherwise.
func ChunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitSentences(text) {
		n := utf8.RuneCountInString(sentence)
		if currentLen+n > size {
			emit()
		}
		if n > size {
			chunks = append(chunks, splitWords(sentence, size)...)
			continue
		}
		current.WriteString(sentence)
		currentLen += n
	}
	emit()
	return chunks
}

// splitSentences cuts text after every sentence end, keeping the separators.
func splitSentences(text string) []string {
	var out []string
	for text != "" {
		cut := -1
		sepLen := 0
		for _, sep := range sentenceEnds {
			if i := strings.Index(text, sep); i >= 0 && (cut < 0 || i < cut) {
				cut, sepLen = i, len(sep)
			}
		}
		if cut < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:cut+sepLen])
		text = text[cut+sepLen:]
	}
	return out
}

// splitWords breaks an overlong sentence at spaces, or hard at size runes
// when a single word is too long.
func splitWords(sentence string, size int) []string {
	var out []string
	var current []rune
	for _, word := range strings.Fields(sentence) {
		w := []rune(word)
		for len(w) > size {
			if len(current) > 0 {
				out = append(out, string(current))
				current = nil
			}
			out = append(out, string(w[:size]))
			w = w[size:]
		}
		extra := len(w)
		if len(current) > 0 {
			extra++
		}
		if len(current)+extra > size {
			out = append(out, string(current))
			current = nil
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}
