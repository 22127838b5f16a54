package copyengine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

var commandContext = exec.CommandContext

// fileStartPrefix tags out-format lines so they are unambiguous against
// progress output.
const fileStartPrefix = ">f:"

// RsyncOption configures the rsync engine.
type RsyncOption func(*Rsync)

// WithBinary overrides the default binary name.
func WithBinary(binary string) RsyncOption {
	return func(r *Rsync) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// Rsync invokes the rsync command line tool as the bulk copier.
type Rsync struct {
	binary string
}

// NewRsync constructs an engine using defaults.
func NewRsync(opts ...RsyncOption) *Rsync {
	engine := &Rsync{binary: "rsync"}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Start launches an rsync run copying the source tree below destination.
func (r *Rsync) Start(ctx context.Context, source, destination string, opts Options, hooks Hooks) (Handle, error) {
	if source == "" {
		return nil, errors.New("source path required")
	}
	if destination == "" {
		return nil, errors.New("destination required")
	}

	args := []string{
		"--archive",
		"--partial",
		"--progress",
		"--out-format=" + fileStartPrefix + "%n:%l",
	}
	if opts.BandwidthKB > 0 {
		args = append(args, fmt.Sprintf("--bwlimit=%d", opts.BandwidthKB))
	}
	args = append(args, opts.Extra...)
	args = append(args, source, destination)

	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	// Own process group so pause/resume signals reach rsync's helpers too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}

	h := &rsyncHandle{
		id:   uuid.NewString(),
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		var bytesSent int64
		scanner := bufio.NewScanner(stdout)
		scanner.Split(scanCarriageLines)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if name, size, ok := parseFileStart(line); ok {
				if hooks.OnFileStarted != nil {
					hooks.OnFileStarted(name, size)
				}
				continue
			}
			if percent, ok := parseProgress(line); ok {
				if hooks.OnProgress != nil {
					hooks.OnProgress(percent)
				}
				continue
			}
			if sent, ok := parseSentBytes(line); ok {
				bytesSent = sent
			}
		}

		waitErr := cmd.Wait()
		if scanErr := scanner.Err(); scanErr != nil && waitErr == nil {
			waitErr = fmt.Errorf("read %s output: %w", r.binary, scanErr)
		}

		result := Result{Success: waitErr == nil, BytesSent: bytesSent}
		if waitErr != nil {
			result.Error = waitErr.Error()
			h.setErr(fmt.Errorf("%s run failed: %w", r.binary, waitErr))
		}
		if hooks.OnCompleted != nil {
			hooks.OnCompleted(result)
		}
	}()

	return h, nil
}

type rsyncHandle struct {
	id   string
	pid  int
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (h *rsyncHandle) ID() string { return h.id }

func (h *rsyncHandle) Pause() error {
	return h.signal(unix.SIGSTOP)
}

func (h *rsyncHandle) Resume() error {
	return h.signal(unix.SIGCONT)
}

// Stop terminates the run with SIGTERM, escalating to SIGKILL if the process
// group is still alive shortly after.
func (h *rsyncHandle) Stop() error {
	if err := h.signal(unix.SIGTERM); err != nil {
		return err
	}
	go func() {
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			_ = h.signal(unix.SIGKILL)
		}
	}()
	return nil
}

func (h *rsyncHandle) Done() <-chan struct{} { return h.done }

func (h *rsyncHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *rsyncHandle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *rsyncHandle) signal(sig unix.Signal) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	// Negative pid addresses the whole process group.
	if err := unix.Kill(-h.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal copy process: %w", err)
	}
	return nil
}

var _ Engine = (*Rsync)(nil)
