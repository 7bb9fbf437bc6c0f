// Package prompt stores the generation prompt settings in prompt.json.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/comfybridge/internal/shared/fileutil"
)

// DefaultNegative is the negative prompt used when none is configured or
// advanced prompting is off.
const DefaultNegative = "bad quality, worst quality, blurry"

// ErrCorrupt reports a prompt file that could not be parsed or repaired.
var ErrCorrupt = errors.New("corrupt prompt file")

// Prompt holds the user's prompt settings. Numeric settings are kept as the
// strings the panel edits.
type Prompt struct {
	Positive string   `json:"positive"`
	Negative string   `json:"negative"`
	Seed     string   `json:"seed"`
	Steps    string   `json:"steps"`
	CFG      string   `json:"cfg"`
	Denoise  *float64 `json:"denoise,omitempty"`
}

// Defaults returns the first-run prompt.
func Defaults() Prompt {
	return Prompt{
		Negative: DefaultNegative,
		Seed:     "16932230013661987000",
		Steps:    "15",
		CFG:      "6",
	}
}

// NegativeFor returns the negative prompt to send.
func (p Prompt) NegativeFor(advanced bool) string {
	if !advanced || p.Negative == "" {
		return DefaultNegative
	}
	return p.Negative
}

var trailingBrace = regexp.MustCompile(`}\s*$`)

// Store reads and writes prompt.json.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored prompt. A missing file is created with Defaults.
// A file with one stray closing brace at the end is repaired in memory.
func (s *Store) Load() (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		p := Defaults()
		if err := s.saveLocked(p); err != nil {
			return Prompt{}, err
		}
		return p, nil
	}
	if err != nil {
		return Prompt{}, fmt.Errorf("read prompt: %w", err)
	}

	var p Prompt
	if err := sonic.Unmarshal(data, &p); err == nil {
		return p, nil
	}
	fixed := trailingBrace.ReplaceAll(bytes.TrimSpace(data), nil)
	if err := sonic.Unmarshal(fixed, &p); err != nil {
		return Prompt{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, nil
}

// Save overwrites the prompt file.
func (s *Store) Save(p Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(p)
}

func (s *Store) saveLocked(p Prompt) error {
	if p.Steps == "" {
		p.Steps = "20"
	}
	if p.CFG == "" {
		p.CFG = "6"
	}
	data, err := sonic.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prompt: %w", err)
	}
	if err := fileutil.WriteFile(s.path, data); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	return nil
}
