package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// NewRecordKey creates a unique key for a stored record.
// Format: epochMillis_md5(seed)[:8] when a seed is given, otherwise a
// version 7 UUID, so keys sort in creation order.
func NewRecordKey(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return uuid.Must(uuid.NewV7()).String()
	}

	epochMillis := time.Now().UnixMilli()

	hash := md5.Sum([]byte(seed))
	hashStr := hex.EncodeToString(hash[:])[:8]

	return fmt.Sprintf("%d_%s", epochMillis, hashStr)
}

// SanitizeFilename creates a safe filename from a string. Letters of any
// script are kept so Telugu names stay readable on disk.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isFilenameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isFilenameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) ||
		unicode.Is(unicode.Mc, r) || r == '-' || r == '_'
}
