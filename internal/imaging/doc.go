// Package imaging holds the canonical pixel representation used by the
// export pipeline, the selection mask compositor and the PNG/JPEG encoders.
//
// Buffers are never mutated across ownership boundaries: ApplyMask and
// StripAlpha always return a new buffer and leave their input untouched.
//
// Mask polarity is subtractive. A coverage of 255 zeroes the pixel's alpha
// (the region is cut out and becomes the edit region for inpainting); a
// coverage of 0 leaves alpha as it was:
//
//	newAlpha = round(oldAlpha * (1 - coverage/255))
package imaging
