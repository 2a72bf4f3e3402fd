// Package translation translates and detects text between English and the
// supported Indian languages. The Google Cloud Translation API is the
// primary tier. Without it an embedded food and culture glossary, backed
// by transliteration, produces a best-effort English rendering.
package translation
