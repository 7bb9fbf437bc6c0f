package imaging

import "errors"

var (
	// ErrInvalidBuffer reports a buffer whose data length disagrees with its
	// dimensions, or a channel count the operation does not accept.
	ErrInvalidBuffer = errors.New("invalid pixel buffer")

	// ErrEncode reports an image that could not be serialized.
	ErrEncode = errors.New("encode failed")

	// ErrWrite reports an artifact that could not be created or overwritten.
	ErrWrite = errors.New("write failed")
)
