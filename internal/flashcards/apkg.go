package flashcards

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// collectionName is the SQLite database inside an .apkg.
const collectionName = "collection.anki2"

var schema = []string{
	`CREATE TABLE col (
		id integer PRIMARY KEY, crt integer NOT NULL, mod integer NOT NULL,
		scm integer NOT NULL, ver integer NOT NULL, dty integer NOT NULL,
		usn integer NOT NULL, ls integer NOT NULL, conf text NOT NULL,
		models text NOT NULL, decks text NOT NULL, dconf text NOT NULL,
		tags text NOT NULL)`,
	`CREATE TABLE notes (
		id integer PRIMARY KEY, guid text NOT NULL, mid integer NOT NULL,
		mod integer NOT NULL, usn integer NOT NULL, tags text NOT NULL,
		flds text NOT NULL, sfld text NOT NULL, csum integer NOT NULL,
		flags integer NOT NULL, data text NOT NULL)`,
	`CREATE TABLE cards (
		id integer PRIMARY KEY, nid integer NOT NULL, did integer NOT NULL,
		ord integer NOT NULL, mod integer NOT NULL, usn integer NOT NULL,
		type integer NOT NULL, queue integer NOT NULL, due integer NOT NULL,
		ivl integer NOT NULL, factor integer NOT NULL, reps integer NOT NULL,
		lapses integer NOT NULL, left integer NOT NULL, odue integer NOT NULL,
		odid integer NOT NULL, flags integer NOT NULL, data text NOT NULL)`,
	`CREATE TABLE revlog (
		id integer PRIMARY KEY, cid integer NOT NULL, usn integer NOT NULL,
		ease integer NOT NULL, ivl integer NOT NULL, lastIvl integer NOT NULL,
		factor integer NOT NULL, time integer NOT NULL, type integer NOT NULL)`,
	`CREATE TABLE graves (usn integer NOT NULL, oid integer NOT NULL, type integer NOT NULL)`,
	`CREATE INDEX ix_notes_usn ON notes (usn)`,
	`CREATE INDEX ix_cards_usn ON cards (usn)`,
	`CREATE INDEX ix_cards_nid ON cards (nid)`,
	`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
	`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
	`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
}

// WriteAPKG writes the deck as an Anki package: the collection database,
// the numbered media files and the media index, zipped.
func (d *Deck) WriteAPKG(ctx context.Context, path string) error {
	tmp, err := os.MkdirTemp("", "sahachari-deck-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	names := make([]string, len(d.cards))
	for i, c := range d.cards {
		names[i] = mediaName(i, c)
	}

	dbPath := filepath.Join(tmp, collectionName)
	if err := d.writeCollection(ctx, dbPath, names); err != nil {
		return fmt.Errorf("failed to build collection: %w", err)
	}
	if err := d.pack(path, dbPath, names); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (d *Deck) writeCollection(ctx context.Context, dbPath string, media []string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if err := d.insertCollection(ctx, tx); err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	if err := d.insertNotes(ctx, tx, media); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Deck) insertCollection(ctx context.Context, tx *sql.Tx) error {
	now := time.Now().Unix()
	deckID := strconv.FormatInt(d.id, 10)
	modelID := strconv.FormatInt(d.modelID, 10)

	deck := func(id int64, name, desc string) map[string]any {
		return map[string]any{
			"id": id, "name": name, "desc": desc, "mod": now, "usn": 0,
			"conf": 1, "dyn": 0, "collapsed": false, "browserCollapsed": false,
			"newToday": []int{0, 0}, "revToday": []int{0, 0},
			"lrnToday": []int{0, 0}, "timeToday": []int{0, 0},
			"extendNew": 10, "extendRev": 50,
		}
	}
	decks := map[string]any{
		"1":    deck(1, "Default", ""),
		deckID: deck(d.id, d.Name, "Telugu and English vocabulary from sahachari"),
	}
	models := map[string]any{modelID: d.noteType(now)}
	conf := map[string]any{
		"nextPos": 1, "estTimes": true, "activeDecks": []int64{1},
		"sortType": "noteFld", "sortBackwards": false, "addToCur": true,
		"curDeck": 1, "newSpread": 0, "dueCounts": true, "collapseTime": 1200,
		"timeLim": 0, "schedVer": 1, "curModel": modelID, "dayLearnFirst": false,
	}
	dconf := map[string]any{
		"1": map[string]any{
			"id": 1, "name": "Default", "dyn": 0, "usn": 0, "mod": now,
			"maxTaken": 60, "timer": 0, "autoplay": true, "replayq": true,
			"new": map[string]any{
				"delays": []int{1, 10}, "ints": []int{1, 4, 7}, "initialFactor": 2500,
				"perDay": 20, "order": 1, "bury": true, "separate": true,
			},
			"lapse": map[string]any{
				"delays": []int{10}, "mult": 0, "minInt": 1, "leechFails": 8, "leechAction": 0,
			},
			"rev": map[string]any{
				"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "maxIvl": 36500,
				"ivlFct": 1, "bury": true, "minSpace": 1,
			},
		},
	}

	encoded := make([]string, 0, 4)
	for _, v := range []any{conf, models, decks, dconf} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(b))
	}

	// Schema version 11 is what Anki 2.1 imports without conversion.
	_, err := tx.ExecContext(ctx, `INSERT INTO col VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		now, now*1000, now*1000, encoded[0], encoded[1], encoded[2], encoded[3])
	return err
}

func (d *Deck) noteType(now int64) map[string]any {
	field := func(ord int, name string, size int) map[string]any {
		return map[string]any{
			"name": name, "ord": ord, "sticky": false, "rtl": false,
			"font": "Noto Sans Telugu", "size": size, "media": []string{},
		}
	}
	template := func(ord int, name, front, back string) map[string]any {
		return map[string]any{
			"name": name, "ord": ord, "qfmt": front, "afmt": back,
			"did": nil, "bqfmt": "", "bafmt": "",
		}
	}
	return map[string]any{
		"id": d.modelID, "name": "sahachari vocabulary (Telugu + English)",
		"type": 0, "mod": now, "usn": -1, "sortf": 0, "did": d.id,
		"req":  [][]any{{0, "all", []int{1}}, {1, "all", []int{0}}},
		"vers": []int{}, "tags": []string{},
		"flds": []map[string]any{
			field(0, "Telugu", 32),
			field(1, "English", 24),
			field(2, "Audio", 20),
			field(3, "Notes", 16),
		},
		"tmpls": []map[string]any{
			template(0, "English to Telugu", frontEnglish, backTelugu),
			template(1, "Telugu to English", frontTelugu, backEnglish),
		},
		"css":       cardCSS,
		"latexPre":  "\\documentclass[12pt]{article}\n\\usepackage[utf8]{inputenc}\n\\begin{document}",
		"latexPost": "\\end{document}",
	}
}

func (d *Deck) insertNotes(ctx context.Context, tx *sql.Tx, media []string) error {
	now := time.Now()
	noteStmt, err := tx.PrepareContext(ctx, `INSERT INTO notes VALUES (?, ?, ?, ?, -1, 'sahachari', ?, ?, 0, 0, '')`)
	if err != nil {
		return err
	}
	defer noteStmt.Close()
	cardStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cards VALUES (?, ?, ?, ?, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')`)
	if err != nil {
		return err
	}
	defer cardStmt.Close()

	for i, c := range d.cards {
		// Three IDs per note: the note and its two cards.
		noteID := now.UnixMilli() + int64(i*3)
		guid := fmt.Sprintf("sahachari_%d_%d", d.id, i)
		flds := fields(c.Telugu, c.English, soundField(media[i]), c.Notes)

		if _, err := noteStmt.ExecContext(ctx, noteID, guid, d.modelID, now.Unix(), flds, c.Telugu); err != nil {
			return fmt.Errorf("failed to insert note %q: %w", c.Telugu, err)
		}
		for ord := range 2 {
			id := noteID + int64(ord) + 1
			if _, err := cardStmt.ExecContext(ctx, id, noteID, d.id, ord, now.Unix(), id); err != nil {
				return fmt.Errorf("failed to insert card %q: %w", c.Telugu, err)
			}
		}
	}
	return nil
}

// pack zips the collection and the media. Media entries are numbered and
// the "media" entry maps the numbers back to file names.
func (d *Deck) pack(path, dbPath string, media []string) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	if err := addFile(zw, collectionName, dbPath); err != nil {
		return err
	}

	index := map[string]string{}
	for i, c := range d.cards {
		if media[i] == "" {
			continue
		}
		num := strconv.Itoa(len(index))
		w, err := zw.Create(num)
		if err != nil {
			return err
		}
		if _, err := w.Write(c.Audio); err != nil {
			return err
		}
		index[num] = media[i]
	}

	w, err := zw.Create("media")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(index); err != nil {
		return err
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

const frontEnglish = `<div class="english">{{English}}</div>`

const backTelugu = `{{FrontSide}}
<hr id="answer">
<div class="telugu">{{Telugu}}</div>
{{#Audio}}<div class="audio">{{Audio}}</div>{{/Audio}}
{{#Notes}}<div class="notes">{{Notes}}</div>{{/Notes}}`

const frontTelugu = `<div class="telugu">{{Telugu}}</div>
{{#Audio}}<div class="audio">{{Audio}}</div>{{/Audio}}`

const backEnglish = `{{FrontSide}}
<hr id="answer">
<div class="english">{{English}}</div>
{{#Notes}}<div class="notes">{{Notes}}</div>{{/Notes}}`

const cardCSS = `.card { font-family: "Noto Sans Telugu", Arial, sans-serif; font-size: 20px; text-align: center; color: #333; background: #fff; }
.telugu { font-size: 36px; font-weight: bold; color: #b9410e; margin: 20px 0; }
.english { font-size: 28px; font-weight: bold; color: #2c3e50; margin: 20px 0; }
.audio { margin: 15px 0; }
.notes { font-size: 16px; color: #7f8c8d; font-style: italic; margin-top: 20px; }
hr#answer { margin: 30px 0; border: 0; border-top: 1px solid #ecf0f1; }`
