package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
)

var (
	// ErrNotConnected reports a send attempted while the channel is not Open.
	// Messages are never queued for later delivery.
	ErrNotConnected = errors.New("backend not connected")

	// ErrClosed reports use of a channel after Close.
	ErrClosed = errors.New("channel closed")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Options configures a Channel. Zero-valued collaborators get production
// defaults.
type Options struct {
	URL               string
	ReconnectInterval time.Duration
	DialTimeout       time.Duration
	QueueSize         int

	Dialer    Dialer
	Scheduler Scheduler
	Launcher  Launcher
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

// Channel is the persistent backend connection.
type Channel struct {
	url               string
	reconnectInterval time.Duration
	dialTimeout       time.Duration
	dialer            Dialer
	scheduler         Scheduler
	launcher          Launcher
	logger            *logging.Logger
	metrics           *monitoring.Metrics

	mu         sync.Mutex
	state      State
	conn       Conn
	connID     string
	generation uint64 // bumped per opened connection
	reconnect  Timer
	reconnects uint64 // identifies the pending reconnect timer
	launched   bool   // launch already requested during this outage
	closed     bool
	baseCtx    context.Context

	writeMu  sync.Mutex
	messages chan Message
	done     chan struct{}
}

// New creates a disconnected channel.
func New(opts Options) *Channel {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 5 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 3 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(opts.DialTimeout)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}

	return &Channel{
		url:               opts.URL,
		reconnectInterval: opts.ReconnectInterval,
		dialTimeout:       opts.DialTimeout,
		dialer:            opts.Dialer,
		scheduler:         opts.Scheduler,
		launcher:          opts.Launcher,
		logger:            logging.OrNop(opts.Logger).Named("transport"),
		metrics:           opts.Metrics,
		baseCtx:           context.Background(),
		messages:          make(chan Message, opts.QueueSize),
		done:              make(chan struct{}),
	}
}

// Start binds the context used by scheduled reconnects and makes the first
// connection attempt. A failed first attempt is not an error for Start; the
// channel keeps reconnecting in the background.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		c.logger.Info("backend not reachable yet", zap.Error(err))
	}
}

// Messages is the inbound queue consumed by the session.
func (c *Channel) Messages() <-chan Message {
	return c.messages
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnID returns the id of the open connection, or "".
func (c *Channel) ConnID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Connect dials the backend. It is a no-op while Open or Connecting, and it
// cancels any pending scheduled reconnect.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	conn, err := c.dialer.Dial(dialCtx, c.url)
	cancel()

	c.mu.Lock()
	if err != nil {
		c.setStateLocked(StateDisconnected)
		launch := !c.launched && !c.closed
		c.launched = true
		if !c.closed {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()

		c.logger.Warn("backend connection failed", zap.String("url", c.url), zap.Error(err))
		if launch {
			c.launchBackend()
		}
		return fmt.Errorf("connect %s: %w", c.url, err)
	}
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}

	c.conn = conn
	c.connID = uuid.NewString()
	c.generation++
	c.launched = false
	c.setStateLocked(StateOpen)
	gen, connID := c.generation, c.connID
	c.mu.Unlock()

	c.logger.Info("connected to backend", zap.String("url", c.url), zap.String("conn_id", connID))
	go c.readLoop(conn, gen)
	return nil
}

// Send marshals v and writes it to the open connection.
func (c *Channel) Send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()
	if state != StateOpen || conn == nil {
		c.logger.Warn("send dropped", zap.String("state", state.String()), zap.Error(ErrNotConnected))
		return ErrNotConnected
	}

	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("send failed", zap.Error(err))
		// the read loop observes the close and schedules the reconnect
		conn.Close()
		return fmt.Errorf("send: %w", err)
	}

	c.metrics.RecordWSMessage("out", commandOf(v))
	return nil
}

// Dispatch decodes one inbound frame and queues it. It never fails: bad
// frames are logged and dropped, unknown kinds are ignored.
func (c *Channel) Dispatch(raw []byte) {
	msg, err := Decode(raw)
	if err != nil {
		c.metrics.IncProtocolDrops()
		c.logger.Warn("dropping inbound message", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	c.metrics.RecordWSMessage("in", msg.Kind.String())
	if msg.Kind == KindUnknown {
		c.logger.Debug("ignoring unrecognized message", zap.ByteString("raw", truncate(raw, 256)))
		return
	}

	select {
	case c.messages <- msg:
	case <-c.done:
	}
}

// Close stops reconnecting and closes the connection. Messages already
// queued stay readable.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelReconnectLocked()
	conn := c.conn
	if conn != nil {
		c.setStateLocked(StateClosing)
	}
	c.mu.Unlock()

	close(c.done)

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = conn.Close()
	}

	c.mu.Lock()
	c.conn = nil
	c.connID = ""
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
	return err
}

func (c *Channel) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.Dispatch(data)
	}
}

func (c *Channel) handleClosed(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		return
	}
	c.logger.Info("backend connection closed", zap.String("conn_id", c.connID), zap.Error(err))
	c.conn.Close()
	c.conn = nil
	c.connID = ""
	c.setStateLocked(StateDisconnected)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked replaces any pending reconnect with a new one, so
// at most one is ever outstanding.
func (c *Channel) scheduleReconnectLocked() {
	c.cancelReconnectLocked()
	c.reconnects++
	seq := c.reconnects
	ctx := c.baseCtx

	c.metrics.IncReconnectAttempts()
	c.reconnect = c.scheduler.AfterFunc(c.reconnectInterval, func() {
		c.mu.Lock()
		if seq != c.reconnects || c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("reconnecting to backend")
		_ = c.Connect(ctx)
	})
}

func (c *Channel) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconnects++
}

func (c *Channel) launchBackend() {
	if c.launcher == nil {
		return
	}
	c.metrics.IncBackendLaunches()
	if err := c.launcher.Launch(); err != nil {
		c.logger.Warn("backend launch failed", zap.Error(err))
		return
	}
	c.logger.Info("requested local backend launch")
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.metrics.SetConnectionState(c.state.String(), s.String())
	c.state = s
}

func commandOf(v any) string {
	switch m := v.(type) {
	case GenerationRequest:
		return m.Command
	case *GenerationRequest:
		return m.Command
	case CancelRequest:
		return m.Command
	default:
		return "other"
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
