package ffmpeg

import (
	"bufio"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// Runner launches transcoder processes. Abstracted so the registry can be
// tested without spawning anything.
type Runner interface {
	Start(args []string) (Process, error)
}

// Process is a handle to one running transcoder.
type Process interface {
	// PID of the child process.
	PID() int
	// Done yields the exit code once, when the process exits on its own.
	Done() <-chan int
	// Terminate sends a graceful termination signal. It does not wait.
	Terminate() error
	// Alive probes whether the process still exists.
	Alive() bool
}

// ExecRunner spawns real ffmpeg processes.
type ExecRunner struct {
	Command string
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{Command: "ffmpeg"}
}

func (r *ExecRunner) Start(args []string) (Process, error) {
	cmd := exec.Command(r.Command, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	p := &execProcess{cmd: cmd, done: make(chan int, 1)}

	// Relay stderr in background; ffmpeg logs progress there.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("ffmpeg stderr", "pid", cmd.Process.Pid, "output", scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}
		p.done <- code
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan int
	mu   sync.Mutex
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan int {
	return p.done
}

func (p *execProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Alive() bool {
	exists, err := process.PidExists(int32(p.cmd.Process.Pid))
	return err == nil && exists
}
