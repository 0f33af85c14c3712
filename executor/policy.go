package executor

import (
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	"github.com/to404hanga/online_judge_sandbox/executor/verdict"
)

type outcomeKind int

const (
	outcomeAccepted outcomeKind = iota
	outcomeWrongAnswer
	outcomeRuntimeError
	outcomeTimeout
	outcomeSetupFailure
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeAccepted:
		return "accepted"
	case outcomeWrongAnswer:
		return "wrong_answer"
	case outcomeRuntimeError:
		return "runtime_error"
	case outcomeTimeout:
		return "timeout"
	default:
		return "setup_failure"
	}
}

// rule 描述一种单测结果对整体判定的影响
type rule struct {
	verdict   model.Verdict // 为空表示不改变判定
	overwrite bool          // 已是非 accepted 判定时是否覆盖
	halt      bool          // 是否停止执行后续用例
}

var policy = map[outcomeKind]rule{
	outcomeAccepted:     {},
	outcomeWrongAnswer:  {verdict: model.VerdictWrongAnswer},
	outcomeRuntimeError: {verdict: model.VerdictRuntimeError, halt: true},
	outcomeTimeout:      {verdict: model.VerdictTimeLimitExceeded, overwrite: true, halt: true},
	outcomeSetupFailure: {verdict: model.VerdictRuntimeError, overwrite: true, halt: true},
}

var kindOutcomes = map[verdict.Kind]outcomeKind{
	verdict.KindAccepted:     outcomeAccepted,
	verdict.KindWrongAnswer:  outcomeWrongAnswer,
	verdict.KindRuntimeError: outcomeRuntimeError,
}
