package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/gogo/protobuf/proto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/constants"
	"github.com/to404hanga/online_judge_sandbox/consumer"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/pkg404/cachex/lru"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const (
	JudgerMasterTaskGroupID = "judger_master_task_group"
)

var ErrInvalidTask = errors.New("invalid judge task")

// DispatchService forwards judge tasks from kafka onto the redis stream read by
// workers. Redelivered tasks already forwarded recently are skipped.
type DispatchService struct {
	log      loggerv2.Logger
	consumer consumer.Consumer
	rdb      redis.Cmdable
	seen     *lru.Cache
}

var (
	_ consumer.Consumer = (*DispatchService)(nil)
)

func NewDispatchService(log loggerv2.Logger, cg sarama.ConsumerGroup, rdb redis.Cmdable, seen *lru.Cache, topics config.TopicConfig) *DispatchService {
	s := &DispatchService{
		log:  log,
		rdb:  rdb,
		seen: seen,
	}
	handler := consumer.NewGroupHandler(s.handleTask, log)
	s.consumer = consumer.NewSaramaConsumer(cg, topics.Task, handler, log)
	return s
}

func (s *DispatchService) Start(ctx context.Context) error {
	return s.consumer.Start(ctx)
}

func (s *DispatchService) handleTask(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var task event.JudgeTask
	if err := proto.Unmarshal(msg.Value, &task); err != nil {
		return fmt.Errorf("failed to unmarshal judge task: %w", err)
	}
	if err := validate(&task); err != nil {
		return err
	}

	key := strconv.FormatUint(task.SubmissionId, 10)
	if _, ok := s.seen.Get(key); ok {
		s.log.InfoContext(ctx, "skip duplicated task", logger.Uint64("submission_id", task.SubmissionId))
		return nil
	}
	if task.RequestId == "" {
		task.RequestId = uuid.NewString()
	}

	taskBytes, err := proto.Marshal(&task)
	if err != nil {
		return fmt.Errorf("failed to marshal judge task: %w", err)
	}
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: constants.JudgeTaskKey,
		Values: map[string]any{
			constants.JudgeTaskField: taskBytes,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add judge task to stream: %w", err)
	}
	s.seen.Add(key, id)

	s.log.InfoContext(ctx, "task dispatched",
		logger.Uint64("submission_id", task.SubmissionId),
		logger.String("RequestID", task.RequestId),
		logger.String("stream_id", id))
	return nil
}

func validate(task *event.JudgeTask) error {
	switch {
	case task.SubmissionId == 0:
		return fmt.Errorf("%w: missing submission id", ErrInvalidTask)
	case task.Language == "":
		return fmt.Errorf("%w: missing language", ErrInvalidTask)
	case task.TimeLimitMs < 0:
		return fmt.Errorf("%w: negative time limit", ErrInvalidTask)
	}
	return nil
}
