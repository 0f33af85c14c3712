//go:build unix

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solution.sh")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestProcessSandboxRun(t *testing.T) {
	sb := NewProcessSandbox(loggerv2.GetGlobalLogger(), 0)
	tests := []struct {
		name       string
		script     string
		stdin      string
		wantStdout string
		wantStderr string
		wantExit   int
	}{
		{name: "echo stdin", script: "cat\n", stdin: "1 2\n3\n", wantStdout: "1 2\n3\n"},
		{name: "non zero exit", script: "echo boom >&2\nexit 3\n", wantStderr: "boom\n", wantExit: 3},
		{name: "ignores stdin", script: "echo hi\n", stdin: strings.Repeat("x", 1<<20), wantStdout: "hi\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := writeScript(t, tc.script)
			out, err := sb.Run(context.Background(), RunSpec{
				Args:       []string{"sh", src},
				SourcePath: src,
				Stdin:      tc.stdin,
				Timeout:    5 * time.Second,
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if out.Stdout != tc.wantStdout {
				t.Fatalf("stdout = %q, want %q", out.Stdout, tc.wantStdout)
			}
			if out.Stderr != tc.wantStderr {
				t.Fatalf("stderr = %q, want %q", out.Stderr, tc.wantStderr)
			}
			if out.ExitCode != tc.wantExit {
				t.Fatalf("exit = %d, want %d", out.ExitCode, tc.wantExit)
			}
		})
	}
}

func TestProcessSandboxTimeoutKillsGroup(t *testing.T) {
	sb := NewProcessSandbox(loggerv2.GetGlobalLogger(), 0)
	// 子进程继承 stdout, 若进程组未被杀死 Run 会一直阻塞
	src := writeScript(t, "sleep 30 &\nsleep 30\n")
	start := time.Now()
	out, err := sb.Run(context.Background(), RunSpec{
		Args:       []string{"sh", src},
		SourcePath: src,
		Timeout:    200 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if out == nil || out.Elapsed != 200*time.Millisecond {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if waited := time.Since(start); waited > 5*time.Second {
		t.Fatalf("run blocked for %s after timeout", waited)
	}
}

func TestProcessSandboxElapsedExcludesBackgroundChild(t *testing.T) {
	sb := NewProcessSandbox(loggerv2.GetGlobalLogger(), 0)
	// 后台子进程持有 stdout, 运行时间只计算主进程
	src := writeScript(t, "sleep 30 &\necho 3\n")
	start := time.Now()
	out, err := sb.Run(context.Background(), RunSpec{
		Args:       []string{"sh", src},
		SourcePath: src,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Stdout != "3\n" || out.ExitCode != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Elapsed >= defaultWaitDelay {
		t.Fatalf("elapsed = %s, want below %s", out.Elapsed, defaultWaitDelay)
	}
	if waited := time.Since(start); waited > 5*time.Second {
		t.Fatalf("run blocked for %s", waited)
	}
}

func TestProcessSandboxOutputCap(t *testing.T) {
	sb := NewProcessSandbox(loggerv2.GetGlobalLogger(), 4)
	src := writeScript(t, "echo 123456789\n")
	out, err := sb.Run(context.Background(), RunSpec{
		Args:       []string{"sh", src},
		SourcePath: src,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Stdout != "1234" {
		t.Fatalf("stdout = %q, want capped output", out.Stdout)
	}
}

func TestProcessSandboxRejectsBadSpec(t *testing.T) {
	sb := NewProcessSandbox(loggerv2.GetGlobalLogger(), 0)
	if _, err := sb.Run(context.Background(), RunSpec{Timeout: time.Second}); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
	if _, err := sb.Run(context.Background(), RunSpec{Args: []string{"true"}}); !errors.Is(err, ErrBadTimeout) {
		t.Fatalf("expected ErrBadTimeout, got %v", err)
	}
}

func TestWorkspaceRelease(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "solution.py")
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	if err := ws.WriteSource("print(1)"); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace still present: %v", err)
	}
}
