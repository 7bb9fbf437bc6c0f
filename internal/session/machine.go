package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/comfybridge/internal/export"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/comfybridge/internal/prompt"
	"github.com/GriffinCanCode/comfybridge/internal/shared/id"
	"github.com/GriffinCanCode/comfybridge/internal/status"
	"github.com/GriffinCanCode/comfybridge/internal/transport"
)

var (
	// ErrNoSelection reports a manual start with nothing selected.
	ErrNoSelection = errors.New("no selection")

	// ErrRemoteJob reports a job the backend failed.
	ErrRemoteJob = errors.New("backend reported an error")
)

// DefaultResetDelay is how long a finished job stays visible before the
// machine returns to Idle.
const DefaultResetDelay = 1500 * time.Millisecond

// Exporter produces the artifact pair for a request.
type Exporter interface {
	Run(ctx context.Context) (export.Artifacts, error)
	Slots() export.Artifacts
}

// Sender delivers outbound messages to the backend.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// StatusWriter persists the coarse status.
type StatusWriter interface {
	Write(rec status.Record) error
}

// SelectionChecker reports whether the document has an active selection.
type SelectionChecker interface {
	SelectionActive(ctx context.Context) (bool, error)
}

// PromptSource supplies the prompts for a new request.
type PromptSource interface {
	Load() (prompt.Prompt, error)
}

// Context holds the flags that steer the machine. It is only changed
// through Machine methods.
type Context struct {
	DocumentChanged   bool   `json:"document_changed"`
	AutoQueue         bool   `json:"auto_queue"`
	AdvancedPrompting bool   `json:"advanced_prompting"`
	Workflow          string `json:"workflow"`
}

// Job is the bookkeeping for the request in flight.
type Job struct {
	ID              string
	StartedAt       time.Time
	Progress        float64
	CancelRequested bool
	Artifacts       export.Artifacts
	Reason          string // cancel reason from the backend
	Err             error
}

// Options configures a Machine.
type Options struct {
	Exporter  Exporter
	Sender    Sender
	Status    StatusWriter
	Selection SelectionChecker
	Prompts   PromptSource
	Notifier  Notifier
	Scheduler transport.Scheduler

	Context      Context
	ResetDelay   time.Duration
	SavePreviews bool
	PreviewRate  float64 // frames per second written to disk
	ResultPath   string
	PreviewPath  string // extension is chosen from the frame contents

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Machine is the session state machine. Each method runs to completion
// before the next is admitted, so every state check holds until the method
// returns.
type Machine struct {
	exporter  Exporter
	sender    Sender
	status    StatusWriter
	selection SelectionChecker
	prompts   PromptSource
	notifier  Notifier
	scheduler transport.Scheduler
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	resetDelay   time.Duration
	savePreviews bool
	resultPath   string
	previewPath  string
	previews     *rate.Limiter

	mu       sync.Mutex
	state    State
	sctx     Context
	job      *Job
	exported bool // artifacts from this process are on disk
	lastErr  error
	reset    transport.Timer
	resetSeq uint64
	baseCtx  context.Context
}

// New creates a Machine in Idle.
func New(opts Options) *Machine {
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	if opts.PreviewRate <= 0 {
		opts.PreviewRate = 10
	}
	if opts.Scheduler == nil {
		opts.Scheduler = transport.NewScheduler()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}

	sctx := opts.Context
	// nothing has been exported by this process yet
	sctx.DocumentChanged = true

	return &Machine{
		exporter:     opts.Exporter,
		sender:       opts.Sender,
		status:       opts.Status,
		selection:    opts.Selection,
		prompts:      opts.Prompts,
		notifier:     opts.Notifier,
		scheduler:    opts.Scheduler,
		logger:       logging.OrNop(opts.Logger).Named("session"),
		metrics:      opts.Metrics,
		resetDelay:   opts.ResetDelay,
		savePreviews: opts.SavePreviews,
		resultPath:   opts.ResultPath,
		previewPath:  opts.PreviewPath,
		previews:     rate.NewLimiter(rate.Limit(opts.PreviewRate), 1),
		state:        StateIdle,
		sctx:         sctx,
		baseCtx:      context.Background(),
	}
}

// Run consumes backend messages until ctx is done or msgs closes. The
// context also bounds jobs started by auto-queue and reset timers.
func (m *Machine) Run(ctx context.Context, msgs <-chan transport.Message) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			m.HandleMessage(msg)
		}
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start handles the start/cancel control. In Idle it begins a job; while a
// job is active it requests cancellation; in a terminal state it resets to
// Idle first and then starts.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.Active():
		return m.cancelLocked(ctx)
	case m.state.Terminal():
		m.resetLocked()
	}
	return m.startLocked(ctx, false)
}

// Cancel requests cancellation of the active job. It is a no-op when no
// job is active or a cancel was already sent.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Active() {
		return nil
	}
	return m.cancelLocked(ctx)
}

// SetAutoQueue toggles auto-queue. Turning it on while Idle with a changed
// document starts a job.
func (m *Machine) SetAutoQueue(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sctx.AutoQueue = on
	m.logger.Info("auto-queue toggled", zap.Bool("enabled", on))
	m.autoQueueLocked()
}

// SetAdvancedPrompting toggles use of the stored negative prompt.
func (m *Machine) SetAdvancedPrompting(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sctx.AdvancedPrompting = on
}

// SetWorkflow sets the workflow path sent with the next request.
func (m *Machine) SetWorkflow(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sctx.Workflow = ref
}

// MarkDocumentChanged records a document edit. While Idle with auto-queue
// on this starts a new job.
func (m *Machine) MarkDocumentChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sctx.DocumentChanged = true
	m.autoQueueLocked()
}

// Reset returns a finished job to Idle. It is a no-op in other states.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Terminal() {
		return
	}
	m.resetLocked()
	m.autoQueueLocked()
}

// HandleMessage applies one backend message. Messages with no transition
// from the current state are ignored.
func (m *Machine) HandleMessage(msg transport.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending && m.state != StateStreaming {
		m.logger.Debug("ignoring message outside a job",
			zap.String("kind", msg.Kind.String()),
			zap.String("state", m.state.String()))
		return
	}

	switch msg.Kind {
	case transport.KindProgress:
		m.job.Progress = msg.Percent
		if !m.job.CancelRequested {
			m.setStateLocked(StateStreaming)
		}
		m.writeStatusLocked()
		m.notifyLocked(Event{})

	case transport.KindPreview:
		if !m.job.CancelRequested {
			m.setStateLocked(StateStreaming)
		}
		m.persistPreviewLocked(msg.Image)
		m.notifyLocked(Event{Preview: msg.Image})

	case transport.KindSuccess:
		m.job.Progress = 100
		result := m.persistResultLocked(msg.Images)
		m.finishLocked(StateCompleted, Event{ResultPath: result})

	case transport.KindCancelled:
		m.job.Reason = msg.Reason
		m.finishLocked(StateCancelled, Event{})

	case transport.KindError:
		m.job.Err = fmt.Errorf("%w: %s", ErrRemoteJob, msg.Detail)
		m.logger.Warn("backend job failed",
			zap.String("job_id", m.job.ID),
			zap.ByteString("payload", msg.Raw))
		m.finishLocked(StateFailed, Event{})
	}
}

// Snapshot is a copy of the machine's visible state.
type Snapshot struct {
	State     string  `json:"state"`
	Status    string  `json:"status"`
	JobID     string  `json:"job_id,omitempty"`
	Progress  float64 `json:"progress"`
	Reason    string  `json:"reason,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	Context   Context `json:"context"`
}

// Snapshot returns the current visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:   m.state.String(),
		Status:  m.state.Status(),
		Context: m.sctx,
	}
	if m.job != nil {
		snap.JobID = m.job.ID
		snap.Progress = m.job.Progress
		snap.Reason = m.job.Reason
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}

func (m *Machine) startLocked(ctx context.Context, auto bool) error {
	if !m.sctx.AutoQueue {
		active, err := m.selectionActiveLocked(ctx)
		if err != nil || !active {
			m.lastErr = ErrNoSelection
			m.logger.Info("start refused", zap.Error(ErrNoSelection))
			m.notifyLocked(Event{Err: ErrNoSelection})
			return ErrNoSelection
		}
	}

	m.cancelResetLocked()
	m.lastErr = nil
	m.job = &Job{ID: id.NewJobID().String(), StartedAt: time.Now()}
	m.setStateLocked(StateExporting)
	m.writeStatusLocked()
	m.notifyLocked(Event{})

	artifacts, err := m.exportLocked(ctx)
	if err != nil {
		m.job.Err = err
		m.finishLocked(StateFailed, Event{})
		return err
	}
	m.job.Artifacts = artifacts

	req := m.requestLocked(artifacts)
	m.setStateLocked(StatePending)
	m.writeStatusLocked()
	m.notifyLocked(Event{})

	if err := m.sender.Send(ctx, req); err != nil {
		m.job.Err = fmt.Errorf("send request: %w", err)
		m.finishLocked(StateFailed, Event{})
		return m.job.Err
	}
	m.metrics.IncJobsStarted()
	m.logger.Info("generation requested",
		zap.String("job_id", m.job.ID),
		zap.Bool("auto", auto),
		zap.String("workflow", req.WorkflowPath))
	return nil
}

// exportLocked runs the pipeline unless the document is unchanged and the
// previous artifacts are still on disk.
func (m *Machine) exportLocked(ctx context.Context) (export.Artifacts, error) {
	if !m.sctx.DocumentChanged && m.exported && m.exporter.Slots().Exists() {
		m.metrics.IncExportsSkipped()
		m.logger.Debug("document unchanged, reusing artifacts", zap.String("job_id", m.job.ID))
		return m.exporter.Slots(), nil
	}

	artifacts, err := m.exporter.Run(ctx)
	if err != nil {
		// auto-queue waits for the next edit instead of retrying this one
		m.exported = false
		m.sctx.DocumentChanged = false
		return export.Artifacts{}, fmt.Errorf("export: %w", err)
	}
	m.exported = true
	m.sctx.DocumentChanged = false
	return artifacts, nil
}

func (m *Machine) requestLocked(artifacts export.Artifacts) transport.GenerationRequest {
	p := prompt.Defaults()
	if m.prompts != nil {
		loaded, err := m.prompts.Load()
		if err != nil {
			m.logger.Warn("using default prompt", zap.Error(err))
		} else {
			p = loaded
		}
	}

	return transport.GenerationRequest{
		Command:        transport.CommandImageToImage,
		InputPath:      artifacts.InpaintPath,
		PositivePrompt: p.Positive,
		NegativePrompt: p.NegativeFor(m.sctx.AdvancedPrompting),
		SavePreviews:   m.savePreviews,
		WorkflowPath:   m.sctx.Workflow,
	}
}

func (m *Machine) cancelLocked(ctx context.Context) error {
	if m.job.CancelRequested {
		return nil
	}
	m.job.CancelRequested = true
	m.setStateLocked(StatePending)
	m.notifyLocked(Event{})

	if err := m.sender.Send(ctx, transport.NewCancelRequest()); err != nil {
		m.job.Err = fmt.Errorf("send cancel: %w", err)
		m.finishLocked(StateFailed, Event{})
		return m.job.Err
	}
	m.logger.Info("cancel requested", zap.String("job_id", m.job.ID))
	return nil
}

// finishLocked moves to a terminal state and arms the reset timer.
func (m *Machine) finishLocked(to State, ev Event) {
	m.setStateLocked(to)
	if m.job.Err != nil {
		m.lastErr = m.job.Err
		ev.Err = m.job.Err
	}
	m.writeStatusLocked()
	m.notifyLocked(ev)
	m.logger.Info("job finished",
		zap.String("job_id", m.job.ID),
		zap.String("state", to.String()),
		zap.String("reason", m.job.Reason),
		zap.Duration("took", time.Since(m.job.StartedAt)),
		zap.Error(m.job.Err))
	m.scheduleResetLocked()
}

func (m *Machine) resetLocked() {
	m.cancelResetLocked()
	m.setStateLocked(StateIdle)
	if m.job != nil {
		m.job.Progress = 0
	}
	m.notifyLocked(Event{})
}

// autoQueueLocked starts a job when auto-queue is on, the machine is Idle
// and the document changed since the last export.
func (m *Machine) autoQueueLocked() {
	if !m.sctx.AutoQueue || m.state != StateIdle || !m.sctx.DocumentChanged {
		return
	}
	if err := m.startLocked(m.baseCtx, true); err != nil {
		m.logger.Warn("auto-queue start failed", zap.Error(err))
	}
}

func (m *Machine) scheduleResetLocked() {
	m.cancelResetLocked()
	seq := m.resetSeq
	m.reset = m.scheduler.AfterFunc(m.resetDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if seq != m.resetSeq || !m.state.Terminal() {
			return
		}
		m.reset = nil
		m.resetLocked()
		m.autoQueueLocked()
	})
}

func (m *Machine) cancelResetLocked() {
	if m.reset != nil {
		m.reset.Stop()
		m.reset = nil
	}
	m.resetSeq++
}

func (m *Machine) selectionActiveLocked(ctx context.Context) (bool, error) {
	if m.selection == nil {
		return true, nil
	}
	active, err := m.selection.SelectionActive(ctx)
	if err != nil {
		m.logger.Warn("selection check failed", zap.Error(err))
	}
	return active, err
}

func (m *Machine) setStateLocked(to State) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	m.metrics.RecordTransition(from.String(), to.String())

	fields := []zap.Field{zap.String("from", from.String()), zap.String("to", to.String())}
	if m.job != nil {
		fields = append(fields, zap.String("job_id", m.job.ID))
	}
	m.logger.Debug("session transition", fields...)
}

func (m *Machine) writeStatusLocked() {
	if m.status == nil {
		return
	}
	rec := status.Record{Status: m.state.Status(), UpdatedAt: time.Now().UTC()}
	if m.job != nil {
		rec.JobID = m.job.ID
		if m.state.Active() {
			progress := m.job.Progress
			rec.Progress = &progress
		}
	}
	if err := m.status.Write(rec); err != nil {
		m.logger.Warn("status write failed", zap.Error(err))
	}
}

func (m *Machine) notifyLocked(ev Event) {
	ev.State = m.state
	if m.job != nil {
		ev.JobID = m.job.ID
		ev.Progress = m.job.Progress
	}
	m.notifier.Notify(ev)
}
