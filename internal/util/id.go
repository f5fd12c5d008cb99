package util

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// NewRunID returns a run identifier of the form "<slug>_<8 hex chars>" where
// the slug is derived from the experiment name. An empty name yields a bare
// UUID.
func NewRunID(name string) string {
	slug := Slug(name)
	if slug == "" {
		return NewID()
	}
	return slug + "_" + uuid.NewString()[:8]
}

// Slug lowercases s and replaces every run of non alphanumeric runes with a
// single underscore.
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
