package ping

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/WangYihang/netcheck/pkg/common"
	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/service"
)

const (
	// PacketCount is the number of echo requests sent per run
	PacketCount = 3
	// DefaultMaxOutput caps the captured output in bytes
	DefaultMaxOutput = 64 * 1024
)

// CommandSpec is a finished command to which the host is appended
type CommandSpec struct {
	Path string
	Args []string
	// EndOfOptions inserts "--" before the host so it is never parsed as a flag
	EndOfOptions bool
}

// PingCommand returns the ping invocation for the given GOOS
func PingCommand(goos, path string) CommandSpec {
	if path == "" {
		path = "ping"
	}
	switch goos {
	case "windows":
		return CommandSpec{Path: path, Args: []string{"-n", strconv.Itoa(PacketCount)}}
	default:
		return CommandSpec{Path: path, Args: []string{"-c", strconv.Itoa(PacketCount)}, EndOfOptions: true}
	}
}

// Argv returns the full argument vector for host
func (c CommandSpec) Argv(host string) []string {
	args := make([]string, 0, len(c.Args)+2)
	args = append(args, c.Args...)
	if c.EndOfOptions {
		args = append(args, "--")
	}
	return append(args, host)
}

// Runner implements service.PingRunner. The host is passed as a single
// argument to the process; no shell is involved.
type Runner struct {
	command   CommandSpec
	deadline  time.Duration
	maxOutput int
}

// Config holds runner configuration
type Config struct {
	Command CommandSpec
	// Deadline after which the process is killed
	Deadline  time.Duration
	MaxOutput int
}

// NewRunner creates a new ping runner
func NewRunner(config Config) *Runner {
	if config.Deadline <= 0 {
		config.Deadline = 10 * time.Second
	}
	if config.MaxOutput <= 0 {
		config.MaxOutput = DefaultMaxOutput
	}
	return &Runner{
		command:   config.Command,
		deadline:  config.Deadline,
		maxOutput: config.MaxOutput,
	}
}

// Run implements service.PingRunner
func (r *Runner) Run(ctx context.Context, host string) (*service.PingOutput, error) {
	args := r.command.Argv(host)

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	buf := &cappedBuffer{limit: r.maxOutput}
	cmd := exec.CommandContext(ctx, r.command.Path, args...)
	cmd.Stdout = buf
	cmd.Stderr = buf
	// Bound the wait for pipes held open by orphaned children
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()

	out := &service.PingOutput{
		Command:  DisplayCommand(r.command.Path, args),
		Output:   buf.String(),
		ExitCode: -1,
		Elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if out.Output == "" {
		out.Output = service.NoOutput
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w: ping killed after %s", entity.ErrSubprocessTimeout, r.deadline)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		// Unreachable hosts make ping exit non-zero; the output explains why
		return out, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return out, fmt.Errorf("%w: %s", entity.ErrPingUnavailable, common.SanitizeMessage(err.Error()))
	case ctx.Err() != nil:
		return out, ctx.Err()
	default:
		return out, fmt.Errorf("ping failed: %s", common.SanitizeMessage(err.Error()))
	}
}

// cappedBuffer keeps the first limit bytes written and discards the rest
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := common.EscapeControl(string(b.buf))
	if b.truncated {
		s += "\n[output truncated]"
	}
	return s
}
