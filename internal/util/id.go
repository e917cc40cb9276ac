package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, optionally namespaced as prefix_<hex>.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewToken returns a longer opaque secret suitable for refresh, reset and
// verification tokens.
func NewToken() string {
	return NewID("") + NewID("")
}
