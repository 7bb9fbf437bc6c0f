// Package workflow discovers backend workflow files and tracks the one
// selected for new jobs.
package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
)

// DefaultName is the workflow selected on first run.
const DefaultName = "inpaint_sdxl_fast.json"

var (
	ErrNotFound    = errors.New("workflow not found")
	ErrInvalidJSON = errors.New("workflow is not valid JSON")
)

// Workflow is one discovered workflow file.
type Workflow struct {
	Name string `json:"name"` // path relative to the catalog root, slash separated
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Catalog lists workflow files under a root directory.
type Catalog struct {
	root string

	mu      sync.RWMutex
	current string
}

// NewCatalog returns a catalog rooted at dir with current set to the
// default workflow name (or DefaultName when empty).
func NewCatalog(dir, defaultName string) *Catalog {
	if defaultName == "" {
		defaultName = DefaultName
	}
	return &Catalog{root: dir, current: defaultName}
}

// Root returns the catalog directory.
func (c *Catalog) Root() string {
	return c.root
}

// List returns every *.json file under the root, sorted by name.
func (c *Catalog) List() ([]Workflow, error) {
	matches, err := doublestar.Glob(os.DirFS(c.root), "**/*.json")
	if err != nil {
		return nil, fmt.Errorf("scan workflows: %w", err)
	}
	slices.Sort(matches)

	out := make([]Workflow, 0, len(matches))
	for _, name := range matches {
		path := filepath.Join(c.root, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, Workflow{Name: name, Path: path, Size: info.Size()})
	}
	return out, nil
}

// Select makes name the current workflow after checking that it exists
// and holds valid JSON.
func (c *Catalog) Select(name string) (Workflow, error) {
	wf, err := c.Lookup(name)
	if err != nil {
		return Workflow{}, err
	}
	c.mu.Lock()
	c.current = wf.Name
	c.mu.Unlock()
	return wf, nil
}

// Lookup validates a workflow without selecting it.
func (c *Catalog) Lookup(name string) (Workflow, error) {
	if !doublestar.ValidatePattern(name) || !filepath.IsLocal(filepath.FromSlash(name)) {
		return Workflow{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	path := filepath.Join(c.root, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !sonic.Valid(data) {
		return Workflow{}, fmt.Errorf("%w: %q", ErrInvalidJSON, name)
	}
	return Workflow{Name: filepath.ToSlash(name), Path: path, Size: int64(len(data))}, nil
}

// Current returns the selected workflow name and its absolute path.
func (c *Catalog) Current() (name, path string) {
	c.mu.RLock()
	name = c.current
	c.mu.RUnlock()

	path = filepath.Join(c.root, filepath.FromSlash(name))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return name, path
}
