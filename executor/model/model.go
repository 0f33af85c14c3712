package model

import (
	"time"

	ojmodel "github.com/to404hanga/online_judge_common/model"
)

// DefaultPerTestTimeout 未指定单测超时时使用
const DefaultPerTestTimeout = 2 * time.Second

type Verdict string

const (
	VerdictAccepted          Verdict = "accepted"
	VerdictWrongAnswer       Verdict = "wrong_answer"
	VerdictTimeLimitExceeded Verdict = "tle"
	VerdictRuntimeError      Verdict = "runtime_error"
)

// SubmissionResult maps the verdict onto the shared submission result code.
func (v Verdict) SubmissionResult() ojmodel.SubmissionResult {
	switch v {
	case VerdictAccepted:
		return ojmodel.SubmissionResultAccepted
	case VerdictWrongAnswer:
		return ojmodel.SubmissionResultWrongAnswer
	case VerdictTimeLimitExceeded:
		return ojmodel.SubmissionResultTimeLimitExceeded
	default:
		return ojmodel.SubmissionResultRuntimeError
	}
}

type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// ExecutionRequest 一次提交的判题请求, TestCases 的顺序即执行顺序
type ExecutionRequest struct {
	Code           string        `json:"code"`
	Language       string        `json:"language"`
	TestCases      []TestCase    `json:"test_cases"`
	PerTestTimeout time.Duration `json:"per_test_timeout"`
}

type TestCaseResult struct {
	Input     string  `json:"input"`
	Expected  string  `json:"expected"`
	Actual    *string `json:"actual,omitempty"`
	Passed    bool    `json:"passed"`
	RuntimeMs int64   `json:"runtime_ms"`
	Error     *string `json:"error,omitempty"`
}

type ExecutionResult struct {
	Verdict        Verdict          `json:"verdict"`
	TotalRuntimeMs int64            `json:"runtime_ms"`
	MemoryKb       int64            `json:"memory_kb"`
	PassedCount    int              `json:"passed_count"`
	TotalCount     int              `json:"total_count"`
	Results        []TestCaseResult `json:"results"`
}
