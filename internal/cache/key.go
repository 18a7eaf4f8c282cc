// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache implements the content-addressed stage cache: a SQLite
// index over an objects directory, keyed by the hash of canonicalized
// input, stage name, and configuration hash. Reads are lock-free;
// writes to the same key are serialized. Eviction is LRU by last
// access, bounded by the configured byte budget.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonicalize normalizes text before hashing so that byte-level noise
// does not defeat cache hits: line endings become LF and trailing
// per-line whitespace is stripped. Semantic content is untouched.
func Canonicalize(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// Key derives the cache key for one stage execution. Identical
// canonicalized input, stage, and configuration always produce the
// same key; any difference in the three produces a different key.
func Key(input, stage, configHash string) string {
	h := sha256.New()
	h.Write([]byte(Canonicalize(input)))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte(configHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes raw content without canonicalization. Stage
// outputs are addressed by what was actually produced.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
