package event

import (
	"time"

	"github.com/to404hanga/online_judge_sandbox/executor/model"
)

// ExecutionRequest builds the judging request for a task. cases replaces the
// task's own cases when non-nil.
func (m *JudgeTask) ExecutionRequest(cases []model.TestCase) *model.ExecutionRequest {
	if cases == nil {
		cases = make([]model.TestCase, 0, len(m.TestCases))
		for _, tc := range m.TestCases {
			cases = append(cases, model.TestCase{Input: tc.Input, Expected: tc.Expected})
		}
	}
	return &model.ExecutionRequest{
		Code:           m.Code,
		Language:       m.Language,
		TestCases:      cases,
		PerTestTimeout: time.Duration(m.TimeLimitMs) * time.Millisecond,
	}
}

func NewJudgeResult(task *JudgeTask, res *model.ExecutionResult) *JudgeResult {
	out := &JudgeResult{
		SubmissionId: task.SubmissionId,
		RequestId:    task.RequestId,
		Verdict:      string(res.Verdict),
		Result:       int32(res.Verdict.SubmissionResult()),
		RuntimeMs:    res.TotalRuntimeMs,
		MemoryKb:     res.MemoryKb,
		PassedCount:  int32(res.PassedCount),
		TotalCount:   int32(res.TotalCount),
		Results:      make([]*TestCaseResult, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		out.Results = append(out.Results, &TestCaseResult{
			Input:     r.Input,
			Expected:  r.Expected,
			Actual:    r.Actual,
			Passed:    r.Passed,
			RuntimeMs: r.RuntimeMs,
			Error:     r.Error,
		})
	}
	return out
}

func (m *JudgeResult) ExecutionResult() *model.ExecutionResult {
	res := &model.ExecutionResult{
		Verdict:        model.Verdict(m.Verdict),
		TotalRuntimeMs: m.RuntimeMs,
		MemoryKb:       m.MemoryKb,
		PassedCount:    int(m.PassedCount),
		TotalCount:     int(m.TotalCount),
		Results:        make([]model.TestCaseResult, 0, len(m.Results)),
	}
	for _, r := range m.Results {
		res.Results = append(res.Results, model.TestCaseResult{
			Input:     r.Input,
			Expected:  r.Expected,
			Actual:    r.Actual,
			Passed:    r.Passed,
			RuntimeMs: r.RuntimeMs,
			Error:     r.Error,
		})
	}
	return res
}

func NewSubmissionAccepted(task *JudgeTask, res *model.ExecutionResult, at time.Time) *SubmissionAccepted {
	return &SubmissionAccepted{
		SubmissionId: task.SubmissionId,
		ProblemId:    task.ProblemId,
		Language:     task.Language,
		RuntimeMs:    res.TotalRuntimeMs,
		MemoryKb:     res.MemoryKb,
		AcceptedAt:   at.UnixMilli(),
		RequestId:    task.RequestId,
	}
}
