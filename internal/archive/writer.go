package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/internal/validation"
)

// DefaultName is the base name used for downloaded charts.
const DefaultName = "transposed.txt"

// OutputName returns the download name for a chart, appending .xz when
// the content is compressed.
func OutputName(compress bool) string {
	if compress {
		return DefaultName + ".xz"
	}
	return DefaultName
}

// EncodeChart writes text to w, xz-compressing it when compress is set.
func EncodeChart(w io.Writer, text string, compress bool) error {
	if !compress {
		_, err := io.WriteString(w, text)
		return err
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := io.WriteString(xw, text); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}

// WriteChart saves text to path. Paths ending in .xz are compressed.
// If createParentDir is true, parent directories of path are created.
func WriteChart(path, text string, createParentDir bool) error {
	if err := validation.ValidatePath(path); err != nil {
		return cserrors.NewIO("write", path, err)
	}

	if createParentDir {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return cserrors.NewIO("create directory for", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return cserrors.NewIO("create", path, err)
	}

	if err := EncodeChart(f, text, validation.IsCompressedName(path)); err != nil {
		f.Close()
		return cserrors.NewIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return cserrors.NewIO("close", path, err)
	}
	return nil
}
