package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records every AfterFunc and fires them on demand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) scheduled() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

// fireLast runs the most recent timer if it was not stopped.
func (s *fakeScheduler) fireLast() bool {
	timers := s.scheduled()
	if len(timers) == 0 {
		return false
	}
	t := timers[len(timers)-1]
	if t.stopped {
		return false
	}
	t.stopped = true
	t.f()
	return true
}

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
	failW   error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failW != nil {
		return c.failW
	}
	c.types = append(c.types, messageType)
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) textFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for i, w := range c.written {
		if c.types[i] == websocket.TextMessage {
			out = append(out, string(w))
		}
	}
	return out
}

var errRefused = errors.New("connection refused")

// fakeDialer pops results in order; once exhausted it keeps refusing.
type fakeDialer struct {
	mu      sync.Mutex
	results []any // *fakeConn or error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.results) == 0 {
		return nil, errRefused
	}
	r := d.results[0]
	d.results = d.results[1:]
	if err, ok := r.(error); ok {
		return nil, err
	}
	return r.(*fakeConn), nil
}

type countingLauncher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLauncher) Launch() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

func (l *countingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
