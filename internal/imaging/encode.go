package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/GriffinCanCode/comfybridge/internal/shared/fileutil"
)

// DefaultJPEGQuality matches the maximum-quality JPEG save of the host.
const DefaultJPEGQuality = 95

// Encoder serializes pixel buffers. Its parameters are fixed at
// construction; nothing about the output is negotiated at runtime.
type Encoder struct {
	jpegQuality int
	png         png.Encoder
}

// NewEncoder creates an encoder. quality outside [1,100] falls back to
// DefaultJPEGQuality.
func NewEncoder(jpegQuality int) *Encoder {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Encoder{
		jpegQuality: jpegQuality,
		png:         png.Encoder{CompressionLevel: png.DefaultCompression},
	}
}

// MarshalPNG encodes an RGB or RGBA buffer as deflate-compressed PNG.
func (e *Encoder) MarshalPNG(pixels *PixelBuffer) ([]byte, error) {
	if err := checkDimensions(pixels); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := e.png.Encode(&buf, pixels.nrgba()); err != nil {
		return nil, fmt.Errorf("%w: png: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// MarshalJPEG encodes an RGB buffer. RGBA input is rejected; callers strip
// alpha first.
func (e *Encoder) MarshalJPEG(pixels *PixelBuffer) ([]byte, error) {
	if err := checkDimensions(pixels); err != nil {
		return nil, err
	}
	if pixels.Channels != 3 {
		return nil, fmt.Errorf("%w: jpeg needs 3 channels, got %d", ErrEncode, pixels.Channels)
	}

	img := image.NewRGBA(image.Rect(0, 0, pixels.Width, pixels.Height))
	for i, j := 0, 0; i < len(pixels.Data); i, j = i+3, j+4 {
		img.Pix[j] = pixels.Data[i]
		img.Pix[j+1] = pixels.Data[i+1]
		img.Pix[j+2] = pixels.Data[i+2]
		img.Pix[j+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: jpeg: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes pixels and overwrites path.
func (e *Encoder) EncodePNG(pixels *PixelBuffer, path string) error {
	data, err := e.MarshalPNG(pixels)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// EncodeJPEG encodes pixels and overwrites path.
func (e *Encoder) EncodeJPEG(pixels *PixelBuffer, path string) error {
	data, err := e.MarshalJPEG(pixels)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

func checkDimensions(pixels *PixelBuffer) error {
	if pixels == nil || pixels.Width <= 0 || pixels.Height <= 0 {
		return fmt.Errorf("%w: malformed dimensions", ErrEncode)
	}
	if err := pixels.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

// WriteFile overwrites path atomically.
func WriteFile(path string, data []byte) error {
	if err := fileutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// CreateTemp writes data to a temp file next to path and returns its name.
// The caller renames it into place or removes it.
func CreateTemp(path string, data []byte) (string, error) {
	name, err := fileutil.CreateTemp(path, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return name, nil
}
