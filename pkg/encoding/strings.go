// Package encoding provides text helpers for the fixed-size string fields of
// the H3D container.
package encoding

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns s in Unicode NFC so equal names compare byte-equal.
func Canonical(s string) string {
	return norm.NFC.String(s)
}

// Truncate shortens s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// PutFixedString writes s into dst as a NUL-terminated, NUL-padded field.
// At most len(dst)-1 bytes of the canonical form are kept.
func PutFixedString(dst []byte, s string) {
	clear(dst)
	if len(dst) == 0 {
		return
	}
	copy(dst, Truncate(Canonical(s), len(dst)-1))
}

// FixedString reads a NUL-terminated string out of a fixed-size field.
func FixedString(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}

// TextureKey turns a source texture path into a logical texture key:
// prefix + path with backslashes normalised and the extension removed.
// An empty path yields an empty key.
func TextureKey(prefix, p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimSuffix(p, path.Ext(p))
	return Canonical(prefix + p)
}
