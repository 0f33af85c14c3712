package event

import "github.com/gogo/protobuf/proto"

// JudgeTask is one submission queued for judging. When TestCases is empty the
// worker loads cases for ProblemId from its testcase directory.
type JudgeTask struct {
	SubmissionId uint64      `protobuf:"varint,1,opt,name=submission_id,json=submissionId,proto3" json:"submission_id,omitempty"`
	ProblemId    uint64      `protobuf:"varint,2,opt,name=problem_id,json=problemId,proto3" json:"problem_id,omitempty"`
	Language     string      `protobuf:"bytes,3,opt,name=language,proto3" json:"language,omitempty"`
	Code         string      `protobuf:"bytes,4,opt,name=code,proto3" json:"code,omitempty"`
	TestCases    []*TestCase `protobuf:"bytes,5,rep,name=test_cases,json=testCases,proto3" json:"test_cases,omitempty"`
	TimeLimitMs  int64       `protobuf:"varint,6,opt,name=time_limit_ms,json=timeLimitMs,proto3" json:"time_limit_ms,omitempty"`
	RequestId    string      `protobuf:"bytes,7,opt,name=request_id,json=requestId,proto3" json:"request_id,omitempty"`
}

func (m *JudgeTask) Reset()         { *m = JudgeTask{} }
func (m *JudgeTask) String() string { return proto.CompactTextString(m) }
func (*JudgeTask) ProtoMessage()    {}

type TestCase struct {
	Input    string `protobuf:"bytes,1,opt,name=input,proto3" json:"input,omitempty"`
	Expected string `protobuf:"bytes,2,opt,name=expected,proto3" json:"expected,omitempty"`
}

func (m *TestCase) Reset()         { *m = TestCase{} }
func (m *TestCase) String() string { return proto.CompactTextString(m) }
func (*TestCase) ProtoMessage()    {}

// JudgeResult carries the full ExecutionResult plus the shared result code.
type JudgeResult struct {
	SubmissionId uint64            `protobuf:"varint,1,opt,name=submission_id,json=submissionId,proto3" json:"submission_id,omitempty"`
	RequestId    string            `protobuf:"bytes,2,opt,name=request_id,json=requestId,proto3" json:"request_id,omitempty"`
	Verdict      string            `protobuf:"bytes,3,opt,name=verdict,proto3" json:"verdict,omitempty"`
	Result       int32             `protobuf:"varint,4,opt,name=result,proto3" json:"result,omitempty"`
	RuntimeMs    int64             `protobuf:"varint,5,opt,name=runtime_ms,json=runtimeMs,proto3" json:"runtime_ms,omitempty"`
	MemoryKb     int64             `protobuf:"varint,6,opt,name=memory_kb,json=memoryKb,proto3" json:"memory_kb,omitempty"`
	PassedCount  int32             `protobuf:"varint,7,opt,name=passed_count,json=passedCount,proto3" json:"passed_count,omitempty"`
	TotalCount   int32             `protobuf:"varint,8,opt,name=total_count,json=totalCount,proto3" json:"total_count,omitempty"`
	Results      []*TestCaseResult `protobuf:"bytes,9,rep,name=results,proto3" json:"results,omitempty"`
}

func (m *JudgeResult) Reset()         { *m = JudgeResult{} }
func (m *JudgeResult) String() string { return proto.CompactTextString(m) }
func (*JudgeResult) ProtoMessage()    {}

// TestCaseResult 中 Actual 与 Error 需要区分未设置与空串, 使用指针字段
type TestCaseResult struct {
	Input     string  `protobuf:"bytes,1,opt,name=input,proto3" json:"input,omitempty"`
	Expected  string  `protobuf:"bytes,2,opt,name=expected,proto3" json:"expected,omitempty"`
	Actual    *string `protobuf:"bytes,3,opt,name=actual" json:"actual,omitempty"`
	Passed    bool    `protobuf:"varint,4,opt,name=passed,proto3" json:"passed,omitempty"`
	RuntimeMs int64   `protobuf:"varint,5,opt,name=runtime_ms,json=runtimeMs,proto3" json:"runtime_ms,omitempty"`
	Error     *string `protobuf:"bytes,6,opt,name=error" json:"error,omitempty"`
}

func (m *TestCaseResult) Reset()         { *m = TestCaseResult{} }
func (m *TestCaseResult) String() string { return proto.CompactTextString(m) }
func (*TestCaseResult) ProtoMessage()    {}

// SubmissionAccepted is emitted once per accepted submission for downstream
// rating and achievement consumers.
type SubmissionAccepted struct {
	SubmissionId uint64 `protobuf:"varint,1,opt,name=submission_id,json=submissionId,proto3" json:"submission_id,omitempty"`
	ProblemId    uint64 `protobuf:"varint,2,opt,name=problem_id,json=problemId,proto3" json:"problem_id,omitempty"`
	Language     string `protobuf:"bytes,3,opt,name=language,proto3" json:"language,omitempty"`
	RuntimeMs    int64  `protobuf:"varint,4,opt,name=runtime_ms,json=runtimeMs,proto3" json:"runtime_ms,omitempty"`
	MemoryKb     int64  `protobuf:"varint,5,opt,name=memory_kb,json=memoryKb,proto3" json:"memory_kb,omitempty"`
	AcceptedAt   int64  `protobuf:"varint,6,opt,name=accepted_at,json=acceptedAt,proto3" json:"accepted_at,omitempty"` // unix 毫秒
	RequestId    string `protobuf:"bytes,7,opt,name=request_id,json=requestId,proto3" json:"request_id,omitempty"`
}

func (m *SubmissionAccepted) Reset()         { *m = SubmissionAccepted{} }
func (m *SubmissionAccepted) String() string { return proto.CompactTextString(m) }
func (*SubmissionAccepted) ProtoMessage()    {}
