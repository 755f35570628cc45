package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const maxComponentLen = 50

// SanitizeComponent makes a string safe for use as a single path segment.
// Only alphanumerics, hyphens, underscores and periods are kept, traversal
// sequences are stripped after filtering so dropped runes cannot splice a
// new ".." together, and the result is capped at 50 characters. Empty or
// dot-only results are replaced with a random 8-character token so callers
// always get a usable segment.
func SanitizeComponent(component string) string {
	var b strings.Builder
	for _, r := range component {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}

	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", "")
	}
	if len(out) > maxComponentLen {
		out = out[:maxComponentLen]
	}
	if out == "" || out == "." {
		return randomToken(8)
	}
	return out
}

// SanitizeTitle converts a document title into a safe filename stem: spaces
// become underscores, unsafe characters are dropped, length capped at 50.
// Falls back to "resume" when nothing survives.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if isSafeRune(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	out := strings.ReplaceAll(b.String(), " ", "_")
	if len(out) > maxComponentLen {
		out = out[:maxComponentLen]
	}
	if out == "" {
		return "resume"
	}
	return out
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	default:
		return false
	}
}

func randomToken(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("x", n)
	}
	return hex.EncodeToString(b)[:n]
}
