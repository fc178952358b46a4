// Package ident generates certificate identifiers.
//
// Identifiers deliberately take no input: deriving them from institution,
// course, or any other public metadata would make them guessable. Uniqueness
// rests entirely on the 36^16 space; there is no local registry of issued
// identifiers.
package ident

import (
	"crypto/rand"
	"strings"
)

const (
	// Length is the fixed identifier length.
	Length = 16

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// New returns a fresh 16-character identifier drawn uniformly from A-Z0-9.
// It never fails: crypto/rand.Read is documented to always succeed.
func New() string {
	out := make([]byte, 0, Length)
	var buf [32]byte
	for len(out) < Length {
		_, _ = rand.Read(buf[:])
		for _, b := range buf {
			// Rejection sampling: 252 is the largest multiple of 36
			// below 256, so accepted bytes map uniformly.
			if b >= 252 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out)
}

// Valid reports whether s has identifier shape. It does not consult the
// ledger.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
