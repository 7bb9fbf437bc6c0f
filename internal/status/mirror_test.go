package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBootstrapsIdle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "status.json")
	m := NewMirror(path)

	rec, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, Idle, rec.Status)
	assert.FileExists(t, path)

	again, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, Idle, again.Status)
	assert.False(t, again.UpdatedAt.IsZero())
}

func TestWriteThenRead(t *testing.T) {
	m := NewMirror(filepath.Join(t.TempDir(), "status.json"))
	progress := 42.0

	require.NoError(t, m.Write(Record{Status: Running, Progress: &progress, JobID: "job_01"}))

	rec, err := m.Read()
	require.NoError(t, err)
	assert.True(t, rec.Running())
	require.NotNil(t, rec.Progress)
	assert.Equal(t, 42.0, *rec.Progress)
	assert.Equal(t, "job_01", rec.JobID)
}

func TestWriteIsExternallyReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	m := NewMirror(path)
	require.NoError(t, m.Write(IdleRecord()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"idle"`)
	assert.NotContains(t, string(data), "progress")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteKeepsExplicitTimestamp(t *testing.T) {
	m := NewMirror(filepath.Join(t.TempDir(), "status.json"))
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Write(Record{Status: Running, UpdatedAt: at}))
	rec, err := m.Read()
	require.NoError(t, err)
	assert.True(t, at.Equal(rec.UpdatedAt))
}

func TestReadRejectsUnparseableRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":`), 0o644))

	_, err := NewMirror(path).Read()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadTreatsForeignRecordsAsIdle(t *testing.T) {
	for name, body := range map[string]string{
		"backend completion marker": `{"genCompleted": true}`,
		"completed status":          `{"status":"completed","progress":100}`,
		"unknown status":            `{"status":"paused"}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "status.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			rec, err := NewMirror(path).Read()
			require.NoError(t, err)
			assert.Equal(t, Idle, rec.Status)
			assert.False(t, rec.Running())
			assert.Nil(t, rec.Progress)
			assert.False(t, rec.UpdatedAt.IsZero(), "falls back to the file time")
		})
	}
}

func TestBootstrapReturnsWrittenRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	m := NewMirror(path)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	first, err := m.Read()
	require.NoError(t, err)
	assert.True(t, at.Equal(first.UpdatedAt))

	second, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
}

func TestPollerDeliversBootstrapOnce(t *testing.T) {
	p := NewPoller(NewMirror(filepath.Join(t.TempDir(), "status.json")), time.Second, nil)

	rec, ok := p.Poll()
	require.True(t, ok)
	assert.Equal(t, Idle, rec.Status)

	_, ok = p.Poll()
	assert.False(t, ok)
}
