package deploy

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/config"
	"chat-relay/internal/mocks"
)

func testDeployConfig() config.DeployConfig {
	return config.DeployConfig{
		Dir:        "/srv/chat",
		Branch:     "main",
		InstallCmd: "go mod download",
		RestartCmd: "systemctl restart chat-relay",
		Timeout:    time.Minute,
	}
}

func TestNewDeployerSteps(t *testing.T) {
	d, err := NewDeployer(testDeployConfig(), new(mocks.RunnerMock), nil)
	require.NoError(t, err)

	steps := d.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "git pull origin main", steps[0].String())
	assert.Equal(t, "go mod download", steps[1].String())
	assert.Equal(t, "systemctl restart chat-relay", steps[2].String())
}

func TestNewDeployerRejectsEmptyCommand(t *testing.T) {
	cfg := testDeployConfig()
	cfg.RestartCmd = "  "

	_, err := NewDeployer(cfg, new(mocks.RunnerMock), nil)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestDeployRunsStepsInOrder(t *testing.T) {
	runner := new(mocks.RunnerMock)
	d, err := NewDeployer(testDeployConfig(), runner, nil)
	require.NoError(t, err)

	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(2)) }
	runner.On("Run", mock.Anything, "/srv/chat", "git", []string{"pull", "origin", "main"}).Run(record).Return(nil).Once()
	runner.On("Run", mock.Anything, "/srv/chat", "go", []string{"mod", "download"}).Run(record).Return(nil).Once()
	runner.On("Run", mock.Anything, "/srv/chat", "systemctl", []string{"restart", "chat-relay"}).Run(record).Return(nil).Once()

	require.NoError(t, d.Deploy(context.Background()))
	assert.Equal(t, []string{"git", "go", "systemctl"}, order)
	runner.AssertExpectations(t)
}

func TestDeployStopsAtFirstFailure(t *testing.T) {
	runner := new(mocks.RunnerMock)
	d, err := NewDeployer(testDeployConfig(), runner, nil)
	require.NoError(t, err)

	runner.On("Run", mock.Anything, "/srv/chat", "git", mock.Anything).Return(nil).Once()
	runner.On("Run", mock.Anything, "/srv/chat", "go", mock.Anything).Return(assert.AnError).Once()

	err = d.Deploy(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, "systemctl", mock.Anything)
}

func TestDeployAppliesTimeout(t *testing.T) {
	runner := new(mocks.RunnerMock)
	d, err := NewDeployer(testDeployConfig(), runner, nil)
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Return(nil)

	require.NoError(t, d.Deploy(context.Background()))
}

type countingRunner struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		prev := r.maxSeen.Load()
		if n <= prev || r.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func TestDeploySerialisesConcurrentCalls(t *testing.T) {
	runner := &countingRunner{}
	d, err := NewDeployer(testDeployConfig(), runner, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Deploy(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
}

func TestExecRunner(t *testing.T) {
	runner := ExecRunner{}
	dir := t.TempDir()

	require.NoError(t, runner.Run(context.Background(), dir, "sh", "-c", "echo out; echo err >&2"))
	assert.Error(t, runner.Run(context.Background(), dir, "sh", "-c", "exit 3"))
	assert.Error(t, runner.Run(context.Background(), dir, "definitely-not-a-real-binary"))
}

func TestExecRunnerDoesNotWaitForBackgroundChild(t *testing.T) {
	runner := ExecRunner{WaitDelay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := runner.Run(ctx, t.TempDir(), "sh", "-c", "echo restarting; sleep 20 &")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecRunnerStopsAtContextDeadline(t *testing.T) {
	runner := ExecRunner{WaitDelay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := runner.Run(ctx, t.TempDir(), "sh", "-c", "sleep 20")

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunnerHandlesLongLines(t *testing.T) {
	var out bytes.Buffer
	runner := ExecRunner{Logger: slog.New(slog.NewJSONHandler(&out, nil)), WaitDelay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := runner.Run(ctx, t.TempDir(), "sh", "-c", "head -c 200000 /dev/zero | tr '\\0' a; echo; head -c 200000 /dev/zero | tr '\\0' b; echo")

	require.NoError(t, err)
	assert.Equal(t, 2*((200000+maxLogLine-1)/maxLogLine), strings.Count(out.String(), "\n"))
}

func TestLineWriter(t *testing.T) {
	var out bytes.Buffer
	w := newLineWriter(slog.New(slog.NewTextHandler(&out, nil)), slog.LevelInfo)

	n, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	_, err = w.Write([]byte("ond\r\ntail"))
	require.NoError(t, err)
	w.Flush()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "msg=first")
	assert.Contains(t, lines[1], "msg=second")
	assert.Contains(t, lines[2], "msg=tail")
}

func TestLineWriterSplitsOversizedLines(t *testing.T) {
	var out bytes.Buffer
	w := newLineWriter(slog.New(slog.NewTextHandler(&out, nil)), slog.LevelInfo)

	_, err := w.Write(bytes.Repeat([]byte("x"), 2*maxLogLine+10))
	require.NoError(t, err)
	assert.Len(t, w.buf, 10)

	w.Flush()
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}
