// Package flashcards turns Telugu and English vocabulary into Anki decks.
// Decks are written as .apkg packages with embedded audio or as CSV files
// for Anki's text import.
package flashcards

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/snonux/sahachari/internal"
)

// Card is one vocabulary note. Audio holds the spoken Telugu word.
type Card struct {
	Telugu      string
	English     string
	Audio       []byte
	AudioFormat string
	Notes       string
}

// Deck collects cards under a name.
type Deck struct {
	Name    string
	id      int64
	modelID int64
	cards   []Card
}

// NewDeck creates an empty deck. IDs derive from the creation time as Anki
// expects them to be unique per collection.
func NewDeck(name string) *Deck {
	now := time.Now().UnixMilli()
	return &Deck{Name: name, id: now, modelID: now + 1}
}

// Add appends a card.
func (d *Deck) Add(c Card) {
	d.cards = append(d.cards, c)
}

// Cards returns the cards in insertion order.
func (d *Deck) Cards() []Card {
	return d.cards
}

// Stats counts the cards and how many carry audio.
func (d *Deck) Stats() (total, withAudio int) {
	for _, c := range d.cards {
		total++
		if len(c.Audio) > 0 {
			withAudio++
		}
	}
	return total, withAudio
}

// mediaName is the file name a card's audio gets inside a deck.
func mediaName(i int, c Card) string {
	if len(c.Audio) == 0 {
		return ""
	}
	format := c.AudioFormat
	if format == "" {
		format = "mp3"
	}
	base := internal.SanitizeFilename(c.Telugu)
	if base == "" {
		base = "card"
	}
	return fmt.Sprintf("%03d_%s.%s", i+1, base, format)
}

func soundField(name string) string {
	if name == "" {
		return ""
	}
	return "[sound:" + name + "]"
}

// WriteCSV writes one row per card: Telugu, English, Audio, Notes. Audio
// references use Anki's [sound:...] syntax; the files themselves are
// written by WriteMedia.
func (d *Deck) WriteCSV(w io.Writer, headers bool) error {
	writer := csv.NewWriter(w)
	if headers {
		if err := writer.Write([]string{"Telugu", "English", "Audio", "Notes"}); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, c := range d.cards {
		row := []string{c.Telugu, c.English, soundField(mediaName(i, c)), c.Notes}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write card %q: %w", c.Telugu, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMedia stores the audio of every card in dir, named as WriteCSV
// references them.
func (d *Deck) WriteMedia(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create media directory: %w", err)
	}
	n := 0
	for i, c := range d.cards {
		name := mediaName(i, c)
		if name == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), c.Audio, 0o644); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", name, err)
		}
		n++
	}
	return n, nil
}

// fields joins the note fields with Anki's unit separator.
func fields(values ...string) string {
	return strings.Join(values, "\x1f")
}
