// Package archive reads and writes chord charts as plain text files,
// optionally xz-compressed (.txt.xz).
package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/internal/validation"
)

var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// Reader wraps a chart file with automatic decompression handling.
type Reader struct {
	io.Reader
	file *os.File
}

// NewReader opens the chart at path. xz streams are detected by the .xz
// extension or by their magic header.
func NewReader(path string) (*Reader, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, cserrors.NewIO("open", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, cserrors.NewIO("open", path, err)
	}

	r, err := decompress(bufio.NewReader(f), validation.IsCompressedName(path))
	if err != nil {
		f.Close()
		return nil, cserrors.NewIO("read", path, err)
	}

	return &Reader{Reader: r, file: f}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func decompress(br *bufio.Reader, compressed bool) (io.Reader, error) {
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if compressed || bytes.Equal(head, xzMagic) {
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return xzr, nil
	}
	return br, nil
}

// DecodeChart reads a chart from r, decompressing xz input when detected.
// The decoded text must be valid UTF-8, free of NUL bytes and no larger
// than validation.MaxChartSize.
func DecodeChart(r io.Reader) (string, error) {
	dr, err := decompress(bufio.NewReader(r), false)
	if err != nil {
		return "", cserrors.NewIO("decode", "", err)
	}
	data, err := io.ReadAll(io.LimitReader(dr, validation.MaxChartSize+1))
	if err != nil {
		return "", cserrors.NewIO("decode", "", err)
	}
	if err := validation.ValidateChartText(data); err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadChart loads a .txt or .txt.xz chart from disk.
func ReadChart(path string) (string, error) {
	r, err := NewReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, validation.MaxChartSize+1))
	if err != nil {
		return "", cserrors.NewIO("read", path, err)
	}
	if err := validation.ValidateChartText(data); err != nil {
		return "", err
	}
	return string(data), nil
}
