package session

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
)

// Event is pushed to the UI after every visible change.
type Event struct {
	State      State
	JobID      string
	Progress   float64
	Preview    []byte // latest preview frame, when this event carries one
	ResultPath string // final image on disk, set on completion
	Err        error
}

// Notifier receives state-change events. Notify is called with the machine
// locked and must not call back into it.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// NopNotifier drops events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// LogNotifier writes events to a logger.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier returns a notifier logging at info level.
func NewLogNotifier(logger *logging.Logger) LogNotifier {
	return LogNotifier{logger: logging.OrNop(logger).Named("ui")}
}

func (n LogNotifier) Notify(ev Event) {
	fields := []zap.Field{
		zap.String("state", ev.State.String()),
		zap.Float64("progress", ev.Progress),
	}
	if ev.JobID != "" {
		fields = append(fields, zap.String("job_id", ev.JobID))
	}
	if ev.ResultPath != "" {
		fields = append(fields, zap.String("result", ev.ResultPath))
	}
	if len(ev.Preview) > 0 {
		fields = append(fields, zap.Int("preview_bytes", len(ev.Preview)))
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	n.logger.Info("session", fields...)
}
