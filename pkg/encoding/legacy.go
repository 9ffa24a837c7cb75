// Package encoding provides text decoding for names and paths found in mesh and
// material files written by legacy Windows tools.
package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LegacyToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func LegacyToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DecodeName returns s unchanged when it is valid UTF-8, otherwise it is decoded
// as Windows-1252.
func DecodeName(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return LegacyToUTF8([]byte(s))
}

// NormalizePath decodes a path taken from a material library and turns Windows
// separators into forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(DecodeName(path), "\\", "/")
}
