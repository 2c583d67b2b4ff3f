// Package validation checks user-supplied chart files, file names and paths
// before they reach the transposer.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
)

// Limits to prevent resource exhaustion (CWE-400).
const (
	// MaxChartSize is the maximum accepted chart size after decompression (4 MB).
	MaxChartSize = 4 << 20
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
	ErrNotText          = errors.New("content is not plain text")
	ErrInvalidUTF8      = errors.New("content is not valid UTF-8")
)

// ValidateFilename checks if a filename is safe and does not contain malicious characters.
// It rejects filenames with path separators, control characters, and dangerous patterns.
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
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}

	// Reject filenames starting with hyphen (can be confused with command flags)
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}

	return nil
}

// ValidatePath performs path validation without requiring a base directory.
// It checks length limits and invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// SanitizeFilename turns user input into a safe download name.
// Returns a safe filename or an error if the filename cannot be sanitized.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", ErrInvalidFilename
	}

	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	var cleaned strings.Builder
	for _, r := range filename {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	return filename, nil
}

// FileType represents a detected chart file type.
type FileType string

const (
	FileTypeText    FileType = "text"
	FileTypeXZ      FileType = "xz"
	FileTypeUnknown FileType = "unknown"
)

// binaryMagic lists signatures of formats that are never accepted as charts.
var binaryMagic = []struct {
	name  string
	magic []byte
}{
	{"gzip", []byte{0x1f, 0x8b}},
	{"zip", []byte{0x50, 0x4b, 0x03, 0x04}},
	{"pdf", []byte("%PDF-")},
	{"sqlite", []byte("SQLite format 3")},
}

var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// DetectFileType sniffs the first bytes of r. xz streams are reported as
// FileTypeXZ; other known binary formats produce an error.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, xzMagic) {
		return FileTypeXZ, nil
	}
	for _, sig := range binaryMagic {
		if bytes.HasPrefix(buf, sig.magic) {
			return FileTypeUnknown, fmt.Errorf("%w: detected %s", ErrNotText, sig.name)
		}
	}
	if len(buf) == 0 || isLikelyText(buf) {
		return FileTypeText, nil
	}
	return FileTypeUnknown, ErrNotText
}

// IsCompressedName reports whether filename carries an .xz extension.
func IsCompressedName(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xz")
}

// ValidateChartText checks that data is plain UTF-8 text of acceptable size.
// Oversized input yields an error matching core/errors.ErrTooLarge.
func ValidateChartText(data []byte) error {
	if len(data) > MaxChartSize {
		return cserrors.NewTooLarge("text", MaxChartSize)
	}
	if bytes.IndexByte(data, 0) != -1 {
		return fmt.Errorf("%w: null byte found", ErrNotText)
	}
	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	return nil
}

// isLikelyText checks if the buffer contains likely text content.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		switch {
		case r == utf8.RuneError && size == 1:
			// A rune cut off by the sniff window is neutral.
			if utf8.FullRune(buf) {
				control++
			}
		case r == '\t' || r == '\n' || r == '\r':
			printable++
		case unicode.IsControl(r):
			control++
		default:
			printable++
		}
		buf = buf[size:]
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
