package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBootstrapsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.json")
	s := NewStore(path)

	p, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
	assert.FileExists(t, path)

	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "15", again.Steps)
	assert.Equal(t, DefaultNegative, again.Negative)
}

func TestSaveFillsBlankNumbers(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "prompt.json"))
	denoise := 0.75
	require.NoError(t, s.Save(Prompt{Positive: "a red fox", Negative: "text", Denoise: &denoise}))

	p, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "a red fox", p.Positive)
	assert.Equal(t, "20", p.Steps)
	assert.Equal(t, "6", p.CFG)
	require.NotNil(t, p.Denoise)
	assert.Equal(t, 0.75, *p.Denoise)
}

func TestLoadRepairsTrailingBrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"positive":"cat","negative":"dog","steps":"15","cfg":"6"}}`+"\n"), 0o644))

	p, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "cat", p.Positive)
	assert.Equal(t, "dog", p.Negative)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"positive":`), 0o644))

	_, err := NewStore(path).Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNegativeFor(t *testing.T) {
	p := Prompt{Negative: "watermark"}
	assert.Equal(t, "watermark", p.NegativeFor(true))
	assert.Equal(t, DefaultNegative, p.NegativeFor(false))
	assert.Equal(t, DefaultNegative, Prompt{}.NegativeFor(true))
}
