package sync

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drp-sh/drpsync/internal/utils"
)

const maxKeyLen = 40

// DeriveKey turns a file name into a url-safe drop key: the stem of the name
// with anything outside [A-Za-z0-9_-] collapsed to '-', capped at 40 chars.
// An empty result falls back to a random key.
func DeriveKey(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	key := strings.Trim(b.String(), "-")
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	if key == "" {
		key = utils.TokenHex(4)
	}
	return key
}

// UniqueKey derives a key for path and resolves collisions against owner by
// appending a numeric suffix. The suffix walk is deterministic, so repeated
// runs over the same folder produce the same keys. owner reports which path
// currently holds a key, if any.
func UniqueKey(name, path string, owner func(key string) (string, bool)) string {
	base := DeriveKey(name)
	key := base
	for n := 2; ; n++ {
		holder, taken := owner(key)
		if !taken || holder == path {
			return key
		}
		suffix := fmt.Sprintf("-%d", n)
		trimmed := base
		if len(trimmed)+len(suffix) > maxKeyLen {
			trimmed = trimmed[:maxKeyLen-len(suffix)]
		}
		key = trimmed + suffix
	}
}
