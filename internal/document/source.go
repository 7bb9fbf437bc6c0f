// Package document reads the host document: its RGBA raster, its selection
// mask, and a content fingerprint used for dirty tracking.
package document

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/GriffinCanCode/comfybridge/internal/imaging"
)

// Source is the host document/selection accessor consumed by the export
// pipeline and the session.
type Source interface {
	// ExtractPixels returns the full document raster as 8-bit RGBA.
	ExtractPixels(ctx context.Context) (*imaging.PixelBuffer, error)
	// ExtractSelectionMask returns nil when no selection is active.
	ExtractSelectionMask(ctx context.Context) (*imaging.SelectionMask, error)
	// SelectionActive reports whether a non-empty selection exists.
	SelectionActive(ctx context.Context) (bool, error)
}

// FileSource is a Source backed by image files: the flattened document and,
// optionally, a grayscale rendering of the selection.
type FileSource struct {
	DocumentPath  string
	SelectionPath string
}

// NewFileSource creates a file-backed source. selectionPath may be empty.
func NewFileSource(documentPath, selectionPath string) *FileSource {
	return &FileSource{DocumentPath: documentPath, SelectionPath: selectionPath}
}

// ExtractPixels decodes the document file into RGBA.
func (s *FileSource) ExtractPixels(ctx context.Context) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decodeFile(s.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return imaging.FromImage(img), nil
}

// ExtractSelectionMask decodes the selection file, sized to the document.
// A missing file or an all-zero selection both mean "no selection".
func (s *FileSource) ExtractSelectionMask(ctx context.Context) (*imaging.SelectionMask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.SelectionPath == "" {
		return nil, nil
	}
	sel, err := decodeFile(s.SelectionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}

	width, height, err := s.dimensions()
	if err != nil {
		return nil, err
	}
	mask, err := imaging.MaskFromImage(sel, width, height)
	if err != nil {
		return nil, err
	}
	if mask.Empty() {
		return nil, nil
	}
	return mask, nil
}

// SelectionActive reports whether ExtractSelectionMask would return a mask.
func (s *FileSource) SelectionActive(ctx context.Context) (bool, error) {
	mask, err := s.ExtractSelectionMask(ctx)
	if err != nil {
		return false, err
	}
	return mask != nil, nil
}

func (s *FileSource) dimensions() (int, int, error) {
	f, err := os.Open(s.DocumentPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read document: %w", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("read document: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
