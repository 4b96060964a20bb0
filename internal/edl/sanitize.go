package edl

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ReelName derives an EDL reel identifier from a source path: the
// file stem uppercased, non-alphanumerics replaced with underscores,
// truncated to 8 characters.
func ReelName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToUpper(stem) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	reel := b.String()
	if len(reel) > 8 {
		reel = reel[:8]
	}
	if reel == "" {
		reel = "AX"
	}
	return reel
}

// SanitizeTitle strips control characters and characters outside a
// conservative allow-list from a sequence title.
func SanitizeTitle(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedTitleRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedTitleRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}
