package imaging

import "fmt"

// ApplyMask returns a copy of pixels whose alpha is reduced by the mask's
// coverage. A nil mask means fully selected and returns pixels unchanged.
func ApplyMask(pixels *PixelBuffer, mask *SelectionMask) (*PixelBuffer, error) {
	if err := pixels.validateRGBA(); err != nil {
		return nil, err
	}
	if mask == nil {
		return pixels, nil
	}
	if mask.Width != pixels.Width || mask.Height != pixels.Height || len(mask.Coverage) != mask.Width*mask.Height {
		return nil, fmt.Errorf("%w: mask %dx%d for %dx%d pixels",
			ErrInvalidBuffer, mask.Width, mask.Height, pixels.Width, pixels.Height)
	}

	out := pixels.Clone()
	for i, c := range mask.Coverage {
		a := i*4 + 3
		out.Data[a] = cutAlpha(out.Data[a], c)
	}
	return out, nil
}

// cutAlpha computes round(alpha * (1 - coverage/255)) in integers. 255 is
// odd, so the exact quotient never lands on .5 and +127 rounds correctly.
func cutAlpha(alpha, coverage byte) byte {
	n := int(alpha) * (255 - int(coverage))
	return byte((n + 127) / 255)
}

// StripAlpha drops the fourth byte of every pixel.
func StripAlpha(pixels *PixelBuffer) (*PixelBuffer, error) {
	if err := pixels.validateRGBA(); err != nil {
		return nil, err
	}

	out := NewPixelBuffer(pixels.Width, pixels.Height, 3)
	for i, j := 0, 0; i < len(pixels.Data); i, j = i+4, j+3 {
		copy(out.Data[j:j+3], pixels.Data[i:i+3])
	}
	return out, nil
}
