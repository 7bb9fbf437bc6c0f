package imaging

import (
	"fmt"
	"image"
	"image/draw"
)

// PixelBuffer is an 8-bit interleaved raster, row-major, 3 (RGB) or 4 (RGBA)
// channels. len(Data) == Width*Height*Channels for every valid buffer.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height, channels int) *PixelBuffer {
	return &PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]byte, width*height*channels),
	}
}

// Validate checks the length invariant and channel count.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidBuffer)
	}
	if b.Channels != 3 && b.Channels != 4 {
		return fmt.Errorf("%w: %d channels", ErrInvalidBuffer, b.Channels)
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrInvalidBuffer, b.Width, b.Height)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Data) != want {
		return fmt.Errorf("%w: %d bytes for %dx%dx%d, want %d",
			ErrInvalidBuffer, len(b.Data), b.Width, b.Height, b.Channels, want)
	}
	return nil
}

// validateRGBA is Validate plus the 4-channel requirement.
func (b *PixelBuffer) validateRGBA() error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Channels != 4 {
		return fmt.Errorf("%w: want 4 channels, got %d", ErrInvalidBuffer, b.Channels)
	}
	return nil
}

// Clone returns a deep copy.
func (b *PixelBuffer) Clone() *PixelBuffer {
	out := *b
	out.Data = append([]byte(nil), b.Data...)
	return &out
}

// FromImage converts any decoded image into a non-premultiplied RGBA buffer.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &PixelBuffer{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Data:     append([]byte(nil), nrgba.Pix...),
	}
}

// nrgba views the buffer as an image for the encoders. RGB buffers are
// expanded with opaque alpha.
func (b *PixelBuffer) nrgba() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	if b.Channels == 4 {
		copy(img.Pix, b.Data)
		return img
	}
	for i, j := 0, 0; i < len(b.Data); i, j = i+3, j+4 {
		img.Pix[j] = b.Data[i]
		img.Pix[j+1] = b.Data[i+1]
		img.Pix[j+2] = b.Data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
