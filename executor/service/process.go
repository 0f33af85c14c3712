package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const defaultWaitDelay = 500 * time.Millisecond

// ProcessSandbox isolates each run in its own OS process group on the host.
type ProcessSandbox struct {
	log            loggerv2.Logger
	maxOutputBytes int64
	waitDelay      time.Duration
}

var _ Sandbox = (*ProcessSandbox)(nil)

func NewProcessSandbox(log loggerv2.Logger, maxOutputBytes int64) *ProcessSandbox {
	return &ProcessSandbox{
		log:            log,
		maxOutputBytes: maxOutputBytes,
		waitDelay:      defaultWaitDelay,
	}
}

func (s *ProcessSandbox) Run(ctx context.Context, spec RunSpec) (*RunOutcome, error) {
	if len(spec.Args) == 0 {
		return nil, ErrEmptyCommand
	}
	if spec.Timeout <= 0 {
		return nil, ErrBadTimeout
	}

	// 使用 *os.File 作为标准流, Wait 在子进程退出时即返回, 不等待继承了管道的子孙进程
	p, err := openPipes()
	if err != nil {
		return nil, err
	}
	defer p.closeParent()

	dir := filepath.Dir(spec.SourcePath)
	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = dir
	cmd.Env = sandboxEnv(dir)
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW
	setProcessGroup(cmd)

	err = cmd.Start()
	p.closeChild()
	if err != nil {
		return nil, fmt.Errorf("start process failed: %w", err)
	}
	startAt := time.Now()
	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	stdout := newCappedBuffer(s.maxOutputBytes)
	stderr := newCappedBuffer(s.maxOutputBytes)
	var copies sync.WaitGroup
	copies.Add(3)
	go func() {
		defer copies.Done()
		_, _ = io.Copy(p.stdinW, strings.NewReader(spec.Stdin))
		_ = p.stdinW.Close()
	}()
	go func() {
		defer copies.Done()
		_, _ = io.Copy(stdout, p.stdoutR)
	}()
	go func() {
		defer copies.Done()
		_, _ = io.Copy(stderr, p.stderrR)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		elapsed := time.Since(startAt)
		// 清理仍留在进程组中的子孙进程
		killProcessGroup(cmd)
		s.drain(&copies, p)
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return nil, fmt.Errorf("wait process failed: %w", err)
			}
		}
		if stdout.Truncated() || stderr.Truncated() {
			s.log.WarnContext(ctx, "process output truncated", logger.Any("limitBytes", s.maxOutputBytes))
		}
		return &RunOutcome{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: cmd.ProcessState.ExitCode(),
			Elapsed:  elapsed,
			MemoryKb: peakMemoryKb(cmd.ProcessState),
		}, nil
	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		s.drain(&copies, p)
		s.log.DebugContext(ctx, "process killed after timeout",
			logger.String("command", spec.Args[0]),
			logger.String("timeout", spec.Timeout.String()))
		return &RunOutcome{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			Elapsed:  spec.Timeout,
		}, ErrTimedOut
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		s.drain(&copies, p)
		return nil, ctx.Err()
	}
}

// drain waits for the stream copies. Descendants that escaped the process group
// may hold the pipes open, so after waitDelay the parent ends are closed.
func (s *ProcessSandbox) drain(copies *sync.WaitGroup, p *pipes) {
	finished := make(chan struct{})
	go func() {
		copies.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(s.waitDelay):
		p.closeParent()
		<-finished
	}
}

type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func openPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("create stdin pipe failed: %w", err)
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeChild()
		p.closeParent()
		return nil, fmt.Errorf("create stdout pipe failed: %w", err)
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeChild()
		p.closeParent()
		return nil, fmt.Errorf("create stderr pipe failed: %w", err)
	}
	return p, nil
}

// closeChild closes the ends handed to the child, once it has started.
func (p *pipes) closeChild() {
	closeFiles(p.stdinR, p.stdoutW, p.stderrW)
}

func (p *pipes) closeParent() {
	closeFiles(p.stdinW, p.stdoutR, p.stderrR)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (s *ProcessSandbox) Close(ctx context.Context) error {
	return nil
}

// sandboxEnv keeps the host environment (and its secrets) away from the child.
func sandboxEnv(dir string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
}
