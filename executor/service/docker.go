package service

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
	"github.com/to404hanga/online_judge_sandbox/executor/language"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const (
	workDirInContainer  = "/app"
	cleanupTimeout      = 10 * time.Second
	exitInspectDeadline = 2 * time.Second
	exitInspectInterval = 20 * time.Millisecond
)

// DockerSandbox runs each test case as one exec inside a pooled, network-less
// container. It also acts as the language.Locator for images it serves.
type DockerSandbox struct {
	client             *client.Client
	log                loggerv2.Logger
	mu                 sync.Mutex
	containerPool      map[string]chan string // image -> 空闲容器
	closed             bool
	containerPoolSize  int
	defaultMemoryLimit int64
	pidsLimit          int64
	maxOutputBytes     int64
}

var (
	errSandboxClosed    = errors.New("docker sandbox closed")
	errExecStillRunning = errors.New("exec still running after output closed")
)

var (
	_ Sandbox          = (*DockerSandbox)(nil)
	_ language.Locator = (*DockerSandbox)(nil)
)

func NewDockerSandbox(log loggerv2.Logger, containerPoolSize, defaultMemoryLimitMB int, pidsLimit, maxOutputBytes int64) (*DockerSandbox, error) {
	c, err := client.New(client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client failed: %w", err)
	}
	if _, err = c.Ping(context.Background(), client.PingOptions{}); err != nil {
		return nil, fmt.Errorf("ping docker daemon failed: %w", err)
	}
	if containerPoolSize <= 0 {
		containerPoolSize = 1
	}
	return &DockerSandbox{
		client:             c,
		log:                log,
		containerPool:      make(map[string]chan string),
		containerPoolSize:  containerPoolSize,
		defaultMemoryLimit: int64(defaultMemoryLimitMB) * 1024 * 1024,
		pidsLimit:          pidsLimit,
		maxOutputBytes:     maxOutputBytes,
	}, nil
}

// Locate trusts the image to provide the first candidate on its PATH; images are
// checked by EnsureImages at startup.
func (e *DockerSandbox) Locate(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no runtime candidates", language.ErrRuntimeMissing)
	}
	return candidates[0], nil
}

func (e *DockerSandbox) EnsureImages(ctx context.Context, images []string) error {
	for _, image := range images {
		if err := e.ensureImage(ctx, image); err != nil {
			return err
		}
	}
	return nil
}

func (e *DockerSandbox) Run(ctx context.Context, spec RunSpec) (*RunOutcome, error) {
	if len(spec.Args) == 0 {
		return nil, ErrEmptyCommand
	}
	if spec.Timeout <= 0 {
		return nil, ErrBadTimeout
	}
	if spec.Image == "" {
		return nil, fmt.Errorf("docker sandbox requires an image")
	}

	workerID, err := e.acquireWorker(ctx, spec.Image)
	if err != nil {
		return nil, fmt.Errorf("acquire worker failed: %w", err)
	}
	healthy := true
	defer func() {
		// healthy=false 时容器被强制删除, 其中残留的进程随之结束
		e.releaseWorker(spec.Image, workerID, healthy)
	}()

	source, err := os.ReadFile(spec.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source failed: %w", err)
	}
	fileName := filepath.Base(spec.SourcePath)
	if err = e.copyFileToContainer(ctx, workerID, workDirInContainer, fileName, source); err != nil {
		healthy = false
		return nil, fmt.Errorf("copy source failed: %w", err)
	}

	inContainer := filepath.ToSlash(filepath.Join(workDirInContainer, fileName))
	args := make([]string, len(spec.Args))
	for i, a := range spec.Args {
		args[i] = strings.ReplaceAll(a, spec.SourcePath, inContainer)
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	startAt := time.Now()
	stdout, stderr, exitCode, err := e.execWithAttach(runCtx, workerID, args, workDirInContainer, spec.Stdin)
	elapsed := time.Since(startAt)
	if err != nil {
		healthy = false
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return &RunOutcome{Stdout: stdout, Stderr: stderr, ExitCode: -1, Elapsed: spec.Timeout}, ErrTimedOut
		}
		return nil, fmt.Errorf("exec in container failed: %w", err)
	}
	return &RunOutcome{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Elapsed:  elapsed,
	}, nil
}

func (e *DockerSandbox) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for image, ch := range e.containerPool {
		close(ch)
		for id := range ch {
			if _, err := e.client.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true}); err != nil {
				e.log.ErrorContext(ctx, "remove container failed", logger.String("containerID", id), logger.Error(err))
			}
		}
		delete(e.containerPool, image)
	}
	return nil
}

func (e *DockerSandbox) ensureImage(ctx context.Context, image string) error {
	filters := client.Filters{}
	filters.Add("reference", image)
	images, err := e.client.ImageList(ctx, client.ImageListOptions{
		Filters: filters,
	})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images.Items) > 0 {
		return nil
	}

	e.log.Info("Local image not found, pulling from registry", logger.String("image", image))
	reader, err := e.client.ImagePull(ctx, image, client.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (e *DockerSandbox) pool(ctx context.Context, image string) (chan string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errSandboxClosed
	}
	if ch, ok := e.containerPool[image]; ok {
		return ch, nil
	}
	ch := make(chan string, e.containerPoolSize)
	for i := 0; i < e.containerPoolSize; i++ {
		id, err := e.startWorkerContainer(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("start worker failed: %w", err)
		}
		ch <- id
	}
	e.containerPool[image] = ch
	return ch, nil
}

func (e *DockerSandbox) acquireWorker(ctx context.Context, image string) (string, error) {
	ch, err := e.pool(ctx, image)
	if err != nil {
		return "", err
	}
	select {
	case id := <-ch:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *DockerSandbox) releaseWorker(image, id string, healthy bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if healthy {
		if !e.putBack(image, id) {
			e.removeContainer(ctx, id)
		}
		return
	}

	e.removeContainer(ctx, id)
	newID, err := e.startWorkerContainer(ctx, image)
	if err != nil {
		e.log.ErrorContext(ctx, "restart worker failed", logger.String("image", image), logger.Error(err))
		return
	}
	if !e.putBack(image, newID) {
		e.removeContainer(ctx, newID)
	}
}

// putBack returns id to the image pool. It reports false once the sandbox is
// closed or the image has no pool, leaving the container to the caller.
func (e *DockerSandbox) putBack(image, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.containerPool[image]
	if e.closed || !ok {
		return false
	}
	// 池中容器数不超过容量, 发送不会阻塞
	ch <- id
	return true
}

func (e *DockerSandbox) removeContainer(ctx context.Context, id string) {
	if _, err := e.client.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true}); err != nil {
		e.log.ErrorContext(ctx, "remove worker failed", logger.String("containerID", id), logger.Error(err))
	}
}

func (e *DockerSandbox) startWorkerContainer(ctx context.Context, image string) (string, error) {
	pidsLimit := e.pidsLimit
	cfg := &container.Config{
		Image:           image,
		Cmd:             []string{"sleep", "infinity"},
		WorkingDir:      workDirInContainer,
		User:            "nobody",
		NetworkDisabled: true,
	}
	host := &container.HostConfig{
		NetworkMode: "none",
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:     e.defaultMemoryLimit,
			MemorySwap: e.defaultMemoryLimit, // 禁用 swap
			NanoCPUs:   1000000000,           // 限制为1个CPU
			PidsLimit:  &pidsLimit,
		},
	}
	resp, err := e.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     cfg,
		HostConfig: host,
	})
	if err != nil {
		return "", err
	}
	if _, err := e.client.ContainerStart(ctx, resp.ID, client.ContainerStartOptions{}); err != nil {
		if _, rmErr := e.client.ContainerRemove(ctx, resp.ID, client.ContainerRemoveOptions{Force: true}); rmErr != nil {
			e.log.Error("remove worker failed", logger.Error(rmErr))
		}
		return "", err
	}
	return resp.ID, nil
}

func (e *DockerSandbox) copyFileToContainer(ctx context.Context, containerID, containerDir, filename string, content []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	unixPath := filepath.ToSlash(filepath.Join(containerDir, filename))
	hdr := &tar.Header{
		Name: unixPath,
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write(content); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	_, err := e.client.CopyToContainer(ctx, containerID, client.CopyToContainerOptions{
		AllowOverwriteDirWithFile: true,
		DestinationPath:           "/",
		Content:                   bytes.NewReader(buf.Bytes()),
	})
	return err
}

func (e *DockerSandbox) execWithAttach(ctx context.Context, containerID string, cmd []string, workDir, stdin string) (string, string, int, error) {
	created, err := e.client.ExecCreate(ctx, containerID, client.ExecCreateOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", "", -1, err
	}
	attach, err := e.client.ExecAttach(ctx, created.ID, client.ExecAttachOptions{})
	if err != nil {
		return "", "", -1, err
	}
	defer attach.Close()

	// 输入与输出并发进行, 避免程序先写满输出管道导致死锁
	go func() {
		_, _ = io.Copy(attach.Conn, strings.NewReader(stdin))
		_ = attach.CloseWrite()
	}()

	stdoutBuf := newCappedBuffer(e.maxOutputBytes)
	stderrBuf := newCappedBuffer(e.maxOutputBytes)
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdoutBuf, stderrBuf, attach.Reader)
		done <- err
	}()

	select {
	case err = <-done:
		if err != nil && err != io.EOF {
			return "", "", -1, err
		}
	case <-ctx.Done():
		// 关闭连接使 StdCopy 返回, 之后再读取缓冲区
		attach.Close()
		<-done
		return stdoutBuf.String(), stderrBuf.String(), -1, ctx.Err()
	}

	exitCode, err := waitExitCode(ctx, func(ctx context.Context) (client.ExecInspectResult, error) {
		return e.client.ExecInspect(ctx, created.ID, client.ExecInspectOptions{})
	})
	if err != nil {
		return stdoutBuf.String(), stderrBuf.String(), -1, err
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// waitExitCode polls until the daemon reports the exec finished. The output
// stream can close before the exit code is recorded.
func waitExitCode(ctx context.Context, inspect func(context.Context) (client.ExecInspectResult, error)) (int, error) {
	deadline := time.Now().Add(exitInspectDeadline)
	for {
		res, err := inspect(ctx)
		if err != nil {
			return -1, err
		}
		if !res.Running {
			return res.ExitCode, nil
		}
		if time.Now().After(deadline) {
			return -1, errExecStillRunning
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(exitInspectInterval):
		}
	}
}
