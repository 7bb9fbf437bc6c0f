package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	mu      sync.Mutex
	records []Record
	errs    []error
	i       int
}

func (r *scriptedReader) Read() (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.i
	if i >= len(r.records) {
		i = len(r.records) - 1
	}
	r.i++
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	return r.records[i], err
}

func TestPollNeverRegresses(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	running := Record{Status: Running, UpdatedAt: t0}
	completed := Record{Status: Idle, UpdatedAt: t0.Add(time.Second)}

	reader := &scriptedReader{records: []Record{running, completed, running, completed}}
	p := NewPoller(reader, time.Second, nil)

	rec, ok := p.Poll()
	require.True(t, ok)
	assert.Equal(t, Running, rec.Status)

	rec, ok = p.Poll()
	require.True(t, ok)
	assert.Equal(t, Idle, rec.Status)

	// a stale read of the older running record is not delivered
	rec, ok = p.Poll()
	assert.False(t, ok)
	assert.Equal(t, Idle, rec.Status)

	_, ok = p.Poll()
	assert.False(t, ok, "same record is not redelivered")
}

func TestPollReadErrorKeepsLast(t *testing.T) {
	t0 := time.Now()
	reader := &scriptedReader{
		records: []Record{{Status: Running, UpdatedAt: t0}, {}},
		errs:    []error{nil, errors.New("disk gone")},
	}
	p := NewPoller(reader, time.Second, nil)

	_, ok := p.Poll()
	require.True(t, ok)
	rec, ok := p.Poll()
	assert.False(t, ok)
	assert.Equal(t, Running, rec.Status)
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	m := NewMirror(t.TempDir() + "/status.json")
	p := NewPoller(m, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Record, 8)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, func(r Record) { got <- r })
		close(done)
	}()

	first := <-got
	assert.Equal(t, Idle, first.Status)

	require.NoError(t, m.Write(Record{Status: Running, UpdatedAt: time.Now().Add(time.Second)}))
	require.Eventually(t, func() bool {
		select {
		case r := <-got:
			return r.Running()
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}
