package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/comfybridge/internal/shared/fileutil"
)

const (
	Idle    = "idle"
	Running = "running"
)

// ErrCorrupt reports a status file that is not a valid record.
var ErrCorrupt = errors.New("corrupt status record")

// Record is the on-disk status.
type Record struct {
	Status    string    `json:"status"`
	Progress  *float64  `json:"progress,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Running reports whether the record shows an active job.
func (r Record) Running() bool {
	return r.Status == Running
}

// IdleRecord returns the bootstrap record.
func IdleRecord() Record {
	return Record{Status: Idle}
}

// Mirror reads and writes the status file. It has a single writer; writes
// replace the file atomically so readers never see a partial record.
type Mirror struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewMirror returns a mirror backed by path.
func NewMirror(path string) *Mirror {
	return &Mirror{path: path, now: time.Now}
}

// Path returns the backing file path.
func (m *Mirror) Path() string {
	return m.path
}

// Write stores rec, stamping UpdatedAt when unset.
func (m *Mirror) Write(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.writeLocked(rec)
	return err
}

// Read returns the current record. A missing file is created holding the
// idle record. Any status other than running reads as idle, which covers the
// completion marker the backend writes into the same file. Records without
// a timestamp take the file's modification time.
func (m *Mirror) Read() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m.writeLocked(IdleRecord())
	}
	if err != nil {
		return Record{}, fmt.Errorf("read status: %w", err)
	}

	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Status != Running {
		rec.Status = Idle
		rec.Progress = nil
	}
	if rec.UpdatedAt.IsZero() {
		if info, err := os.Stat(m.path); err == nil {
			rec.UpdatedAt = info.ModTime().UTC()
		}
	}
	return rec, nil
}

func (m *Mirror) writeLocked(rec Record) (Record, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = m.now().UTC()
	}
	data, err := sonic.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode status: %w", err)
	}
	if err := fileutil.WriteFile(m.path, data); err != nil {
		return Record{}, fmt.Errorf("write status: %w", err)
	}
	return rec, nil
}
