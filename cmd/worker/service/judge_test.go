package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gogo/protobuf/proto"
	"github.com/redis/go-redis/v9"
	"github.com/to404hanga/online_judge_sandbox/constants"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/online_judge_sandbox/executor"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

type fakeJudger struct {
	mu       sync.Mutex
	requests []*model.ExecutionRequest
	err      error
	closed   bool
}

func (f *fakeJudger) Run(ctx context.Context, req *model.ExecutionRequest) (*model.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ExecutionResult{Verdict: model.VerdictAccepted, TotalCount: len(req.TestCases), PassedCount: len(req.TestCases)}, nil
}

func (f *fakeJudger) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*event.JudgeTask
	results   []*model.ExecutionResult
}

func (f *fakePublisher) Publish(ctx context.Context, task *event.JudgeTask, res *model.ExecutionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, task)
	f.results = append(f.results, res)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func setup(t *testing.T, judger executor.Judger) (*JudgeService, redis.Cmdable, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.XGroupCreateMkStream(context.Background(), constants.JudgeTaskKey, groupName, "0").Err(); err != nil {
		t.Fatalf("create group: %v", err)
	}
	pub := &fakePublisher{}
	s := NewJudgeService(loggerv2.GetGlobalLogger(), rdb, judger, pub, 1, 0, t.TempDir(), 3)
	s.readBlock = 50 * time.Millisecond
	return s, rdb, pub
}

func addTask(t *testing.T, rdb redis.Cmdable, task *event.JudgeTask) {
	t.Helper()
	data, err := proto.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err = rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: constants.JudgeTaskKey,
		Values: map[string]any{constants.JudgeTaskField: data},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
}

func readOne(t *testing.T, rdb redis.Cmdable, consumer string) redis.XMessage {
	t.Helper()
	streams, err := rdb.XReadGroup(context.Background(), &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumer,
		Streams:  []string{constants.JudgeTaskKey, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if err != nil || len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("read group: %v %v", streams, err)
	}
	return streams[0].Messages[0]
}

func pending(t *testing.T, rdb redis.Cmdable) int64 {
	t.Helper()
	p, err := rdb.XPending(context.Background(), constants.JudgeTaskKey, groupName).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	return p.Count
}

func TestProcessMessage(t *testing.T) {
	judger := &fakeJudger{}
	s, rdb, pub := setup(t, judger)
	addTask(t, rdb, &event.JudgeTask{
		SubmissionId: 11,
		Language:     "python",
		Code:         "print(1)",
		TimeLimitMs:  1000,
		TestCases:    []*event.TestCase{{Input: "", Expected: "1"}},
	})
	msg := readOne(t, rdb, "c1")
	if err := s.processMessage(context.Background(), &msg, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if pub.count() != 1 || pub.published[0].SubmissionId != 11 {
		t.Fatalf("published %v", pub.published)
	}
	if req := judger.requests[0]; req.PerTestTimeout != time.Second || len(req.TestCases) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if n := pending(t, rdb); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestProcessMessageInfrastructureFailureStaysPending(t *testing.T) {
	judger := &fakeJudger{err: fmt.Errorf("%w: disk full", executor.ErrInfrastructure)}
	s, rdb, pub := setup(t, judger)
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 1, Language: "python", TestCases: []*event.TestCase{{}}})
	msg := readOne(t, rdb, "c1")
	err := s.processMessage(context.Background(), &msg, 1)
	if !errors.Is(err, executor.ErrInfrastructure) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if pub.count() != 0 {
		t.Fatal("result published for failed judging")
	}
	if n := pending(t, rdb); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

func TestProcessMessageDropsBadPayload(t *testing.T) {
	s, rdb, _ := setup(t, &fakeJudger{})
	if err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: constants.JudgeTaskKey,
		Values: map[string]any{constants.JudgeTaskField: "\xff\xff\xff"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	msg := readOne(t, rdb, "c1")
	if err := s.processMessage(context.Background(), &msg, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if n := pending(t, rdb); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestProcessMessageLoadsTestcases(t *testing.T) {
	judger := &fakeJudger{}
	s, rdb, _ := setup(t, judger)
	dir := filepath.Join(s.testcasePathPrefix, "42")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range map[string]string{"1.in": "1", "1.out": "2", "2.in": "3", "2.out": "4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 5, ProblemId: 42, Language: "python"})
	msg := readOne(t, rdb, "c1")
	if err := s.processMessage(context.Background(), &msg, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	cases := judger.requests[0].TestCases
	if len(cases) != 2 || cases[0].Input != "1" || cases[1].Expected != "4" {
		t.Fatalf("unexpected cases %+v", cases)
	}
}

func TestReclaimPending(t *testing.T) {
	s, rdb, pub := setup(t, &fakeJudger{})
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 3, Language: "python", TestCases: []*event.TestCase{{}}})
	readOne(t, rdb, "crashed-worker")

	n, err := s.reclaim(context.Background())
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 1 || pub.count() != 1 {
		t.Fatalf("reclaimed=%d published=%d", n, pub.count())
	}
	if p := pending(t, rdb); p != 0 {
		t.Fatalf("pending = %d, want 0", p)
	}
}

func TestReclaimGivesUpAfterMaxDeliveries(t *testing.T) {
	judger := &fakeJudger{}
	s, rdb, pub := setup(t, judger)
	// 题目 404 没有用例目录, 每次处理都会失败
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 9, ProblemId: 404, Language: "python"})
	msg := readOne(t, rdb, "c1")
	if err := s.processMessage(context.Background(), &msg, 1); err == nil {
		t.Fatal("expected load failure")
	}

	// 第二次投递仍保持 pending
	if _, err := s.reclaim(context.Background()); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if p := pending(t, rdb); p != 1 || pub.count() != 0 {
		t.Fatalf("pending=%d published=%d after second delivery", p, pub.count())
	}

	// 第三次投递达到上限
	if _, err := s.reclaim(context.Background()); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if p := pending(t, rdb); p != 0 {
		t.Fatalf("pending = %d, want 0", p)
	}
	if pub.count() != 1 {
		t.Fatalf("published %d results", pub.count())
	}
	res := pub.results[0]
	if pub.published[0].SubmissionId != 9 || res.Verdict != model.VerdictRuntimeError || len(res.Results) != 0 {
		t.Fatalf("unexpected abandoned result %+v", res)
	}
	if len(judger.requests) != 0 {
		t.Fatalf("judger ran %d times", len(judger.requests))
	}
}

func TestProcessMessageAbandonedResultCarriesError(t *testing.T) {
	judger := &fakeJudger{err: fmt.Errorf("%w: disk full", executor.ErrInfrastructure)}
	s, rdb, pub := setup(t, judger)
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 2, Language: "python", TestCases: []*event.TestCase{{Input: "1", Expected: "1"}, {}}})
	msg := readOne(t, rdb, "c1")
	if err := s.processMessage(context.Background(), &msg, s.maxDeliveries); err != nil {
		t.Fatalf("process: %v", err)
	}
	if n := pending(t, rdb); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
	res := pub.results[0]
	if res.Verdict != model.VerdictRuntimeError || res.TotalCount != 2 || len(res.Results) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if e := res.Results[0].Error; e == nil || *e != "judging abandoned after 3 attempts" {
		t.Fatalf("unexpected error %v", e)
	}
}

func TestStartConsumesAndClosesJudger(t *testing.T) {
	judger := &fakeJudger{}
	s, rdb, pub := setup(t, judger)
	s.concurrency = 2
	s.claimIdle = time.Minute
	addTask(t, rdb, &event.JudgeTask{SubmissionId: 8, Language: "python", TestCases: []*event.TestCase{{}}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("start returned %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("published %d results", pub.count())
	}
	if !judger.closed {
		t.Fatal("judger not closed")
	}
}
