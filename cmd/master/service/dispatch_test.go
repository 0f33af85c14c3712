package service

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/gogo/protobuf/proto"
	"github.com/redis/go-redis/v9"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/constants"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/pkg404/cachex/lru"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

func newTestDispatcher(t *testing.T) (*DispatchService, redis.Cmdable) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache, err := lru.NewSimpleLRU(16)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	s := NewDispatchService(loggerv2.GetGlobalLogger(), nil, rdb, cache, config.TopicConfig{Task: "task"})
	return s, rdb
}

func taskMessage(t *testing.T, task *event.JudgeTask) *sarama.ConsumerMessage {
	t.Helper()
	data, err := proto.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "task", Value: data}
}

func TestHandleTaskForwardsOnce(t *testing.T) {
	s, rdb := newTestDispatcher(t)
	ctx := context.Background()
	msg := taskMessage(t, &event.JudgeTask{SubmissionId: 9, Language: "python", Code: "print(1)"})

	for i := 0; i < 2; i++ {
		if err := s.handleTask(ctx, msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}

	entries, err := rdb.XRange(ctx, constants.JudgeTaskKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream has %d entries, want 1", len(entries))
	}
	raw, ok := entries[0].Values[constants.JudgeTaskField].(string)
	if !ok {
		t.Fatalf("unexpected field type %T", entries[0].Values[constants.JudgeTaskField])
	}
	var got event.JudgeTask
	if err = proto.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SubmissionId != 9 || got.Code != "print(1)" || got.RequestId == "" {
		t.Fatalf("unexpected task %v", &got)
	}
}

func TestHandleTaskRejectsInvalid(t *testing.T) {
	s, rdb := newTestDispatcher(t)
	ctx := context.Background()
	tests := []struct {
		name string
		msg  *sarama.ConsumerMessage
	}{
		{name: "missing submission", msg: taskMessage(t, &event.JudgeTask{Language: "python"})},
		{name: "missing language", msg: taskMessage(t, &event.JudgeTask{SubmissionId: 1})},
		{name: "negative limit", msg: taskMessage(t, &event.JudgeTask{SubmissionId: 1, Language: "python", TimeLimitMs: -1})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.handleTask(ctx, tc.msg); !errors.Is(err, ErrInvalidTask) {
				t.Fatalf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
	if err := s.handleTask(ctx, &sarama.ConsumerMessage{Value: []byte{0xff}}); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if n, _ := rdb.XLen(ctx, constants.JudgeTaskKey).Result(); n != 0 {
		t.Fatalf("stream has %d entries", n)
	}
}
