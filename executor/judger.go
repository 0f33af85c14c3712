package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/to404hanga/online_judge_sandbox/executor/language"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	"github.com/to404hanga/online_judge_sandbox/executor/service"
	"github.com/to404hanga/online_judge_sandbox/executor/verdict"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

// ErrInfrastructure marks failures of the judging host itself. Results are never
// returned alongside it.
var ErrInfrastructure = errors.New("judging infrastructure failure")

const timeLimitMessage = "Time Limit Exceeded"

type Judger interface {
	Run(ctx context.Context, req *model.ExecutionRequest) (*model.ExecutionResult, error)
	Close(ctx context.Context) error
}

// SandboxJudger holds only immutable dependencies, so one instance serves any
// number of concurrent submissions.
type SandboxJudger struct {
	log            loggerv2.Logger
	registry       *language.Registry
	sandbox        service.Sandbox
	workspaceRoot  string
	defaultTimeout time.Duration
}

func NewSandboxJudger(log loggerv2.Logger, registry *language.Registry, sandbox service.Sandbox, workspaceRoot string, defaultTimeout time.Duration) Judger {
	if defaultTimeout <= 0 {
		defaultTimeout = model.DefaultPerTestTimeout
	}
	return &SandboxJudger{
		log:            log,
		registry:       registry,
		sandbox:        sandbox,
		workspaceRoot:  workspaceRoot,
		defaultTimeout: defaultTimeout,
	}
}

func (j *SandboxJudger) Run(ctx context.Context, req *model.ExecutionRequest) (result *model.ExecutionResult, err error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInfrastructure)
	}
	timeout := req.PerTestTimeout
	if timeout <= 0 {
		timeout = j.defaultTimeout
	}
	b := newResultBuilder(len(req.TestCases))

	recipe, err := j.registry.Resolve(req.Language)
	if err != nil {
		j.log.WarnContext(ctx, "resolve language failed",
			logger.String("language", req.Language),
			logger.Error(err))
		b.abort(req.TestCases, err.Error())
		return b.build(), nil
	}

	ws, err := service.NewWorkspace(j.workspaceRoot, recipe.SourceFile)
	if err != nil {
		j.log.ErrorContext(ctx, "create workspace failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInfrastructure, err)
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			j.log.ErrorContext(ctx, "release workspace failed", logger.String("dir", ws.Dir), logger.Error(rerr))
			if err == nil {
				result, err = nil, fmt.Errorf("%w: %w", ErrInfrastructure, rerr)
			}
		}
	}()

	if err = ws.WriteSource(req.Code); err != nil {
		j.log.WarnContext(ctx, "write source failed", logger.Error(err))
		b.abort(req.TestCases, err.Error())
		return b.build(), nil
	}

	args := recipe.Command(ws.SourcePath)
	for i, tc := range req.TestCases {
		kind, r, memoryKb, runErr := j.runCase(ctx, recipe, ws, args, tc, timeout)
		if runErr != nil {
			j.log.ErrorContext(ctx, "judging interrupted", logger.Any("case", i), logger.Error(runErr))
			return nil, runErr
		}
		if b.record(kind, r, memoryKb) {
			j.log.DebugContext(ctx, "submission halted",
				logger.Any("case", i),
				logger.String("outcome", kind.String()))
			break
		}
	}
	return b.build(), nil
}

func (j *SandboxJudger) runCase(ctx context.Context, recipe language.Recipe, ws *service.Workspace, args []string, tc model.TestCase, timeout time.Duration) (outcomeKind, model.TestCaseResult, int64, error) {
	out, err := j.sandbox.Run(ctx, service.RunSpec{
		Args:       args,
		SourcePath: ws.SourcePath,
		Image:      recipe.ImageName,
		Stdin:      tc.Input,
		Timeout:    timeout,
	})
	switch {
	case errors.Is(err, service.ErrTimedOut):
		msg := timeLimitMessage
		return outcomeTimeout, model.TestCaseResult{
			Input:     tc.Input,
			Expected:  verdict.Normalize(tc.Expected),
			RuntimeMs: timeout.Milliseconds(),
			Error:     &msg,
		}, 0, nil
	case err != nil:
		if ctx.Err() != nil {
			return 0, model.TestCaseResult{}, 0, fmt.Errorf("%w: %w", ErrInfrastructure, ctx.Err())
		}
		j.log.WarnContext(ctx, "sandbox run failed", logger.Error(err))
		return outcomeSetupFailure, setupFailureResult(tc, err.Error()), 0, nil
	}

	ev := verdict.Classify(out.Stdout, tc.Expected, out.Stderr, out.ExitCode)
	actual := ev.Actual
	return kindOutcomes[ev.Kind], model.TestCaseResult{
		Input:     tc.Input,
		Expected:  ev.Expected,
		Actual:    &actual,
		Passed:    ev.Passed,
		RuntimeMs: out.Elapsed.Milliseconds(),
		Error:     ev.Error,
	}, out.MemoryKb, nil
}

func (j *SandboxJudger) Close(ctx context.Context) error {
	return j.sandbox.Close(ctx)
}

func setupFailureResult(tc model.TestCase, msg string) model.TestCaseResult {
	return model.TestCaseResult{
		Input:    tc.Input,
		Expected: verdict.Normalize(tc.Expected),
		Error:    &msg,
	}
}
