package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionMaskPlaceClipsAndZeroFills(t *testing.T) {
	m := NewSelectionMask(4, 3)

	// 3x2 selection hanging off the right edge
	err := m.Place(image.Rect(2, 1, 5, 3), []byte{
		10, 20, 30,
		40, 50, 60,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0, 0, 0, 0,
		0, 0, 10, 20,
		0, 0, 40, 50,
	}, m.Coverage)
	assert.Equal(t, uint8(0), m.At(-1, 0))
	assert.Equal(t, uint8(0), m.At(4, 0))
	assert.False(t, m.Empty())

	assert.ErrorIs(t, m.Place(image.Rect(0, 0, 2, 2), []byte{1}), ErrInvalidBuffer)
}

func TestMaskFromImage(t *testing.T) {
	sel := image.NewGray(image.Rect(1, 1, 3, 2))
	sel.SetGray(1, 1, color.Gray{Y: 255})
	sel.SetGray(2, 1, color.Gray{Y: 64})

	m, err := MaskFromImage(sel, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 0,
		0, 255, 64, 0,
	}, m.Coverage)
}

func TestFullMaskAndEmpty(t *testing.T) {
	assert.True(t, NewSelectionMask(3, 3).Empty())
	full := FullMask(2, 2)
	for _, c := range full.Coverage {
		assert.Equal(t, byte(255), c)
	}
	full.Set(9, 9, 0) // ignored
	assert.Equal(t, uint8(255), full.At(1, 1))
}
