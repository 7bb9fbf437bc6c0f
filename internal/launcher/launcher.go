package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/resilience"
)

var (
	// ErrNoCommand reports a launcher built without a command.
	ErrNoCommand = errors.New("no launch command configured")

	// ErrRunning reports a launch while the previous process is alive.
	ErrRunning = errors.New("backend process already running")
)

// StartFunc starts cmd and returns a reader over its combined output.
type StartFunc func(cmd *exec.Cmd) (io.ReadCloser, error)

// Options configures a Launcher.
type Options struct {
	Command string
	Dir     string
	Env     map[string]string

	// Start overrides how the process is started; tests replace it.
	Start   StartFunc
	Breaker *resilience.Breaker
	Logger  *logging.Logger
}

// Launcher runs the backend command, at most one process at a time.
type Launcher struct {
	argv    []string
	dir     string
	env     map[string]string
	start   StartFunc
	breaker *resilience.Breaker
	logger  *logging.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started time.Time
	exited  chan struct{}
}

// New parses the command line and returns a launcher.
func New(opts Options) (*Launcher, error) {
	argv := strings.Fields(opts.Command)
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	if opts.Start == nil {
		opts.Start = startPTY
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.New("backend-launch", resilience.Settings{
			Timeout: time.Minute,
		})
	}
	return &Launcher{
		argv:    argv,
		dir:     opts.Dir,
		env:     opts.Env,
		start:   opts.Start,
		breaker: opts.Breaker,
		logger:  logging.OrNop(opts.Logger).Named("launcher"),
	}, nil
}

// Launch starts the backend unless it is already running. Repeated start
// failures open the breaker and further launches fail fast.
func (l *Launcher) Launch() error {
	if l.Running() {
		return ErrRunning
	}
	return l.breaker.Execute(l.launch)
}

func (l *Launcher) launch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd != nil {
		return ErrRunning
	}

	cmd := exec.Command(l.argv[0], l.argv[1:]...)
	cmd.Dir = l.dir
	cmd.Env = os.Environ()
	for key, value := range l.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	out, err := l.start(cmd)
	if err != nil {
		return fmt.Errorf("start %s: %w", l.argv[0], err)
	}

	l.cmd = cmd
	l.started = time.Now()
	l.exited = make(chan struct{})
	l.logger.Info("backend process started",
		zap.Strings("argv", l.argv),
		zap.Int("pid", pid(cmd)))

	go l.forward(out)
	go l.monitor(cmd, out, l.exited)
	return nil
}

// Running reports whether a launched process is still alive.
func (l *Launcher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil
}

// Stop kills the running process and waits for it to exit.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	cmd, exited := l.cmd, l.exited
	l.mu.Unlock()
	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	<-exited
	return nil
}

func (l *Launcher) forward(out io.Reader) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			l.logger.Debug("backend", zap.String("line", line))
		}
	}
}

func (l *Launcher) monitor(cmd *exec.Cmd, out io.Closer, exited chan struct{}) {
	err := cmd.Wait()
	out.Close()

	l.mu.Lock()
	uptime := time.Since(l.started)
	if l.cmd == cmd {
		l.cmd = nil
	}
	l.mu.Unlock()
	close(exited)

	if err != nil {
		l.logger.Warn("backend process exited", zap.Error(err), zap.Duration("uptime", uptime))
		return
	}
	l.logger.Info("backend process exited", zap.Duration("uptime", uptime))
}

func startPTY(cmd *exec.Cmd) (io.ReadCloser, error) {
	return pty.Start(cmd)
}

func pid(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}
