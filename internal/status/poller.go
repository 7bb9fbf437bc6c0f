package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
)

// DefaultPollInterval matches the UI refresh timer.
const DefaultPollInterval = 2 * time.Second

// Reader is the read side of a Mirror.
type Reader interface {
	Read() (Record, error)
}

// Poller reads the mirror on a fixed interval and delivers records that are
// newer than the last one delivered. A stale read never replaces a newer
// record, so a poll racing a write cannot bring back an old status.
type Poller struct {
	reader   Reader
	interval time.Duration
	logger   *logging.Logger

	mu   sync.Mutex
	last Record
	seen bool
}

// NewPoller creates a poller.
func NewPoller(reader Reader, interval time.Duration, logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		reader:   reader,
		interval: interval,
		logger:   logging.OrNop(logger).Named("status"),
	}
}

// Poll performs one read and reports whether rec is new.
func (p *Poller) Poll() (Record, bool) {
	rec, err := p.reader.Read()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.logger.Warn("status poll failed", zap.Error(err))
		return p.last, false
	}
	if p.seen && !rec.UpdatedAt.After(p.last.UpdatedAt) {
		return p.last, false
	}
	p.last, p.seen = rec, true
	return rec, true
}

// Last returns the newest record delivered so far.
func (p *Poller) Last() (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seen
}

// Run polls until ctx is done, calling onRecord for every newer record.
// The first poll happens immediately.
func (p *Poller) Run(ctx context.Context, onRecord func(Record)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if rec, ok := p.Poll(); ok && onRecord != nil {
			onRecord(rec)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
