package translation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// BatchEntry is one line of a batch file.
type BatchEntry struct {
	Text        string
	Translation string
	// Reverse means only the translation was given and Text must be
	// produced from it.
	Reverse bool
}

// NeedsTranslation reports whether the entry is missing one side.
func (e BatchEntry) NeedsTranslation() bool {
	return e.Text == "" || e.Translation == ""
}

// ReadBatchFile reads entries from a file, one per line:
//   - "ఉప్పు" translates the text into the target language
//   - "ఉప్పు = salt" carries both sides, nothing to translate
//   - "= salt" translates back into the source language
//
// Blank lines and lines starting with # are ignored.
func ReadBatchFile(filename string) ([]BatchEntry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	defer f.Close()

	var entries []BatchEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		text, translation, found := strings.Cut(line, "=")
		if !found {
			entries = append(entries, BatchEntry{Text: line})
			continue
		}
		text = strings.TrimSpace(text)
		translation = strings.TrimSpace(translation)
		switch {
		case text == "" && translation != "":
			entries = append(entries, BatchEntry{Translation: translation, Reverse: true})
		case text != "" && translation != "":
			entries = append(entries, BatchEntry{Text: text, Translation: translation})
		case text != "":
			entries = append(entries, BatchEntry{Text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return entries, nil
}
