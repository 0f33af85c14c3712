package executor

import "github.com/to404hanga/online_judge_sandbox/executor/model"

// resultBuilder accumulates per-case results for one submission. It is owned by a
// single Run call.
type resultBuilder struct {
	verdict        model.Verdict
	totalRuntimeMs int64
	memoryKb       int64
	passedCount    int
	totalCount     int
	results        []model.TestCaseResult
}

func newResultBuilder(totalCount int) *resultBuilder {
	return &resultBuilder{
		verdict:    model.VerdictAccepted,
		totalCount: totalCount,
		results:    make([]model.TestCaseResult, 0, totalCount),
	}
}

// record appends one case result, applies its policy row and reports whether the
// submission halts.
func (b *resultBuilder) record(kind outcomeKind, r model.TestCaseResult, memoryKb int64) bool {
	row := policy[kind]
	b.results = append(b.results, r)
	b.totalRuntimeMs += r.RuntimeMs
	if r.Passed {
		b.passedCount++
	}
	if memoryKb > b.memoryKb {
		b.memoryKb = memoryKb
	}
	if row.verdict != "" && (row.overwrite || b.verdict == model.VerdictAccepted) {
		b.verdict = row.verdict
	}
	return row.halt
}

// abort records a failure that happened before any case could run. The message is
// attached to the first case; with no cases only the verdict changes.
func (b *resultBuilder) abort(cases []model.TestCase, msg string) {
	if len(cases) == 0 {
		b.verdict = policy[outcomeSetupFailure].verdict
		return
	}
	b.record(outcomeSetupFailure, setupFailureResult(cases[0], msg), 0)
}

func (b *resultBuilder) build() *model.ExecutionResult {
	return &model.ExecutionResult{
		Verdict:        b.verdict,
		TotalRuntimeMs: b.totalRuntimeMs,
		MemoryKb:       b.memoryKb,
		PassedCount:    b.passedCount,
		TotalCount:     b.totalCount,
		Results:        b.results,
	}
}

// AbortedResult is the result of a submission given up on before any case ran.
func AbortedResult(cases []model.TestCase, msg string) *model.ExecutionResult {
	b := newResultBuilder(len(cases))
	b.abort(cases, msg)
	return b.build()
}
