package event

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/gogo/protobuf/proto"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

var testTopics = config.TopicConfig{Task: "task", Result: "result", Accepted: "accepted"}

func newMockPublisher(t *testing.T) (*ResultPublisher, *mocks.SyncProducer) {
	t.Helper()
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	p := NewResultPublisher(NewSaramaProducer(sp), loggerv2.GetGlobalLogger(), testTopics)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p, sp
}

func strPtr(s string) *string { return &s }

func TestPublishAccepted(t *testing.T) {
	p, sp := newMockPublisher(t)
	defer sp.Close()

	task := &JudgeTask{SubmissionId: 7, ProblemId: 3, Language: "python", RequestId: "req-1"}
	res := &model.ExecutionResult{
		Verdict:        model.VerdictAccepted,
		TotalRuntimeMs: 42,
		PassedCount:    1,
		TotalCount:     1,
		Results:        []model.TestCaseResult{{Input: "1", Expected: "1", Actual: strPtr("1"), Passed: true, RuntimeMs: 42}},
	}

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got JudgeResult
		if err := proto.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.SubmissionId != 7 || got.Verdict != "accepted" || got.RuntimeMs != 42 || len(got.Results) != 1 {
			return fmt.Errorf("unexpected result %v", &got)
		}
		if got.Result != int32(model.VerdictAccepted.SubmissionResult()) {
			return fmt.Errorf("result code = %d", got.Result)
		}
		return nil
	})
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got SubmissionAccepted
		if err := proto.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.SubmissionId != 7 || got.ProblemId != 3 || got.AcceptedAt != 1700000000000 || got.RequestId != "req-1" {
			return fmt.Errorf("unexpected event %v", &got)
		}
		return nil
	})

	if err := p.Publish(context.Background(), task, res); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishRejectedSkipsAcceptedEvent(t *testing.T) {
	p, sp := newMockPublisher(t)
	defer sp.Close()

	sp.ExpectSendMessageAndSucceed()
	err := p.Publish(context.Background(), &JudgeTask{SubmissionId: 1}, &model.ExecutionResult{Verdict: model.VerdictWrongAnswer, TotalCount: 1})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishFailure(t *testing.T) {
	p, sp := newMockPublisher(t)
	defer sp.Close()

	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := p.Publish(context.Background(), &JudgeTask{SubmissionId: 1}, &model.ExecutionResult{Verdict: model.VerdictAccepted})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestJudgeResultKeepsOptionalFields(t *testing.T) {
	res := &model.ExecutionResult{
		Verdict:     model.VerdictTimeLimitExceeded,
		TotalCount:  2,
		PassedCount: 1,
		Results: []model.TestCaseResult{
			{Input: "a", Expected: "", Actual: strPtr(""), Passed: true, RuntimeMs: 3},
			{Input: "b", Expected: "x", Error: strPtr("Time Limit Exceeded"), RuntimeMs: 2000},
		},
	}
	data, err := proto.Marshal(NewJudgeResult(&JudgeTask{SubmissionId: 9}, res))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded JudgeResult
	if err = proto.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := decoded.ExecutionResult()
	if got.Verdict != model.VerdictTimeLimitExceeded || len(got.Results) != 2 {
		t.Fatalf("unexpected %+v", got)
	}
	if got.Results[0].Actual == nil || *got.Results[0].Actual != "" || got.Results[0].Error != nil {
		t.Fatalf("first result lost presence: %+v", got.Results[0])
	}
	if got.Results[1].Actual != nil || got.Results[1].Error == nil || *got.Results[1].Error != "Time Limit Exceeded" {
		t.Fatalf("second result lost presence: %+v", got.Results[1])
	}
}

func TestJudgeTaskExecutionRequest(t *testing.T) {
	task := &JudgeTask{Language: "python", Code: "print(1)", TimeLimitMs: 1500,
		TestCases: []*TestCase{{Input: "1", Expected: "1"}}}
	req := task.ExecutionRequest(nil)
	if req.PerTestTimeout != 1500*time.Millisecond || len(req.TestCases) != 1 || req.TestCases[0].Input != "1" {
		t.Fatalf("unexpected %+v", req)
	}
	loaded := []model.TestCase{{Input: "x"}, {Input: "y"}}
	if req = task.ExecutionRequest(loaded); len(req.TestCases) != 2 {
		t.Fatalf("loaded cases ignored: %+v", req)
	}
}
