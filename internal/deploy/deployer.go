package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/config"
)

// ErrEmptyCommand is returned when a configured step has no program to run.
var ErrEmptyCommand = errors.New("deploy: empty command")

// Runner executes one program in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// DefaultWaitDelay bounds how long Run waits for output pipes after the
// program exits or its context ends.
const DefaultWaitDelay = 5 * time.Second

// maxLogLine caps a single logged line; longer output is split.
const maxLogLine = 16 << 10

// ExecRunner runs programs with os/exec and forwards their output to the logger.
type ExecRunner struct {
	Logger *slog.Logger
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	waitDelay := r.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	stdout := newLineWriter(logger.With("cmd", name, "stream", "stdout"), slog.LevelInfo)
	stderr := newLineWriter(logger.With("cmd", name, "stream", "stderr"), slog.LevelWarn)
	defer stdout.Flush()
	defer stderr.Flush()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// A child left running in the background can hold the pipes open.
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		logger.Warn("command exited but its output stayed open", "cmd", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// lineWriter logs each complete line written to it.
type lineWriter struct {
	logger *slog.Logger
	level  slog.Level
	buf    []byte
}

func newLineWriter(logger *slog.Logger, level slog.Level) *lineWriter {
	return &lineWriter{logger: logger, level: level}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		switch {
		case idx >= 0 && idx <= maxLogLine:
			w.emit(w.buf[:idx])
			w.buf = append(w.buf[:0], w.buf[idx+1:]...)
		case len(w.buf) > maxLogLine:
			w.emit(w.buf[:maxLogLine])
			w.buf = append(w.buf[:0], w.buf[maxLogLine:]...)
		default:
			return len(p), nil
		}
	}
}

// Flush logs any trailing output without a newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
}

func (w *lineWriter) emit(line []byte) {
	w.logger.Log(context.Background(), w.level, string(bytes.TrimRight(line, "\r")))
}

// Step is one command of a deployment.
type Step struct {
	Name string
	Args []string
}

func (s Step) String() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// Deployer pulls, installs and restarts the service checkout in Dir.
type Deployer struct {
	runner  Runner
	dir     string
	steps   []Step
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
}

// NewDeployer builds a Deployer from config. Install and restart commands are split on whitespace.
func NewDeployer(cfg config.DeployConfig, runner Runner, logger *slog.Logger) (*Deployer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	steps := []Step{{Name: "git", Args: []string{"pull", "origin", cfg.Branch}}}
	for _, raw := range []string{cfg.InstallCmd, cfg.RestartCmd} {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return nil, ErrEmptyCommand
		}
		steps = append(steps, Step{Name: fields[0], Args: fields[1:]})
	}
	return &Deployer{
		runner:  runner,
		dir:     cfg.Dir,
		steps:   steps,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Steps returns the commands Deploy runs, in order.
func (d *Deployer) Steps() []Step {
	return append([]Step(nil), d.steps...)
}

// Deploy runs every step in order and stops at the first failure.
// Concurrent calls are serialised; nothing is rolled back.
func (d *Deployer) Deploy(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	for _, step := range d.steps {
		d.logger.Info("deploy step", "cmd", step.String(), "dir", d.dir)
		if err := d.runner.Run(ctx, d.dir, step.Name, step.Args...); err != nil {
			d.logger.Error("deploy step failed", "cmd", step.String(), "error", err)
			return fmt.Errorf("deploy %q: %w", step.String(), err)
		}
	}
	d.logger.Info("deploy finished", "duration", time.Since(start))
	return nil
}
