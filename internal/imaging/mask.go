package imaging

import (
	"fmt"
	"image"
	"image/draw"
)

// SelectionMask is a full-document grid of coverage values, row-major.
// A nil *SelectionMask means the whole document is selected.
type SelectionMask struct {
	Width    int
	Height   int
	Coverage []byte
}

// NewSelectionMask returns a zero-coverage mask spanning width x height.
func NewSelectionMask(width, height int) *SelectionMask {
	return &SelectionMask{
		Width:    width,
		Height:   height,
		Coverage: make([]byte, width*height),
	}
}

// FullMask returns a mask with coverage 255 everywhere.
func FullMask(width, height int) *SelectionMask {
	m := NewSelectionMask(width, height)
	for i := range m.Coverage {
		m.Coverage[i] = 0xff
	}
	return m
}

// At returns the coverage at (x, y); out-of-range reads are 0.
func (m *SelectionMask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Coverage[y*m.Width+x]
}

// Set writes coverage at (x, y); out-of-range writes are ignored.
func (m *SelectionMask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Coverage[y*m.Width+x] = v
}

// Place copies a bounding-rectangle selection into the mask. src holds
// rect.Dx()*rect.Dy() coverage bytes; the parts of rect outside the document
// are clipped and everything outside rect stays at its current value.
func (m *SelectionMask) Place(rect image.Rectangle, src []byte) error {
	if len(src) != rect.Dx()*rect.Dy() {
		return fmt.Errorf("%w: selection %v has %d bytes", ErrInvalidBuffer, rect, len(src))
	}
	clip := rect.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		row := (y - rect.Min.Y) * rect.Dx()
		for x := clip.Min.X; x < clip.Max.X; x++ {
			m.Coverage[y*m.Width+x] = src[row+x-rect.Min.X]
		}
	}
	return nil
}

// MaskFromImage builds a full-document mask from a grayscale rendering of a
// selection. The image is placed at its own bounds; pixels of the document
// not covered by the image get zero coverage.
func MaskFromImage(img image.Image, width, height int) (*SelectionMask, error) {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)

	m := NewSelectionMask(width, height)
	src := make([]byte, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := gray.PixOffset(bounds.Min.X, y)
		src = append(src, gray.Pix[off:off+bounds.Dx()]...)
	}
	if err := m.Place(bounds, src); err != nil {
		return nil, err
	}
	return m, nil
}

// Empty reports whether no pixel has any coverage.
func (m *SelectionMask) Empty() bool {
	for _, c := range m.Coverage {
		if c != 0 {
			return false
		}
	}
	return true
}
