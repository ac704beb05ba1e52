// Package validation checks user supplied paths, filenames and uploads
// before they reach the importer or the filesystem.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits for user supplied names.
const (
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// ValidatePath rejects empty or overlong paths and paths carrying NUL or
// control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks an uploaded file name. Separators, control
// characters and a leading hyphen are rejected.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// FilenameFromTitle turns a sheet title into a download file stem. Only
// ASCII letters, digits, '-' and '_' survive; spaces and dots become '-'.
// A title with nothing left yields "lyrics".
func FilenameFromTitle(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '-'
		}
		return -1
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "-")
	if name == "" {
		return "lyrics"
	}
	if len(name) > MaxFilenameLength-16 {
		name = name[:MaxFilenameLength-16]
	}
	return name
}

// Content is the kind of data found by Sniff.
type Content string

const (
	ContentXZ     Content = "xz"
	ContentGzip   Content = "gzip"
	ContentZip    Content = "zip"
	ContentSQLite Content = "sqlite"
	ContentXML    Content = "xml"
	ContentText   Content = "text"
	ContentBinary Content = "binary"
)

// IsText reports whether the importer can read the content directly.
func (c Content) IsText() bool {
	return c == ContentText || c == ContentXML
}

var signatures = []struct {
	content Content
	magic   []byte
}{
	{ContentXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{ContentGzip, []byte{0x1f, 0x8b}},
	{ContentZip, []byte{'P', 'K', 0x03, 0x04}},
	{ContentSQLite, []byte("SQLite format 3\x00")},
}

// sniffLen bounds how much of the data Sniff inspects.
const sniffLen = 512

// Sniff classifies data by its magic bytes, falling back to a text check
// over the leading bytes. Empty data is text.
func Sniff(data []byte) Content {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.content
		}
	}
	head := data[:min(len(data), sniffLen)]
	if !isLikelyText(head) {
		return ContentBinary
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<score-")) {
		return ContentXML
	}
	return ContentText
}

// isLikelyText accepts UTF-8 without NUL bytes whose control characters,
// other than tab and line breaks, stay under 5%. A multi-byte rune cut off
// at the end of buf is tolerated.
func isLikelyText(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	var total, control int
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if len(buf) < utf8.UTFMax && !utf8.FullRune(buf) {
				break
			}
			return false
		}
		buf = buf[size:]
		total++
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			control++
		}
	}
	return total == 0 || control*20 < total
}
