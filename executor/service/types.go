package service

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTimedOut     = errors.New("time limit exceeded")
	ErrEmptyCommand = errors.New("empty command")
	ErrBadTimeout   = errors.New("timeout must be positive")
)

// RunSpec describes one child process execution.
type RunSpec struct {
	Args       []string      // argv, Args[0] 为解释器
	SourcePath string        // 宿主机上的源文件路径
	Image      string        // 仅容器后端使用
	Stdin      string
	Timeout    time.Duration // 从进程启动开始计算的墙钟时间
}

type RunOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
	MemoryKb int64 // 尽力而为, 0 表示未知
}

// Sandbox runs untrusted commands. Run returns ErrTimedOut (with a partial outcome)
// when the process outlived RunSpec.Timeout and was killed; any other error means
// the sandbox itself failed.
type Sandbox interface {
	Run(ctx context.Context, spec RunSpec) (*RunOutcome, error)
	Close(ctx context.Context) error
}
