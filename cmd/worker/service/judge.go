package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/to404hanga/online_judge_sandbox/constants"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/online_judge_sandbox/executor"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	"github.com/to404hanga/pkg404/gotools/retry"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const (
	groupName            = "judger_group"
	claimBatch           = 10
	closeTimeout         = 30 * time.Second
	defaultMaxDeliveries = 5
)

var (
	judgeInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "online_judge",
		Subsystem: "worker",
		Name:      "judge_in_flight",
		Help:      "Current number of submissions being judged.",
	})

	judgeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "online_judge",
		Subsystem: "worker",
		Name:      "judge_total",
		Help:      "Total number of judged submissions by verdict.",
	}, []string{"verdict"})

	judgeDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "online_judge",
		Subsystem: "worker",
		Name:      "judge_duration_seconds",
		Help:      "Wall time spent judging one submission.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"verdict"})

	messageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "online_judge",
		Subsystem: "worker",
		Name:      "stream_message_total",
		Help:      "Total number of stream messages by outcome.",
	}, []string{"result", "reason"})
)

func init() {
	prometheus.MustRegister(
		judgeInFlight,
		judgeTotal,
		judgeDurationSeconds,
		messageTotal,
	)
}

type Publisher interface {
	Publish(ctx context.Context, task *event.JudgeTask, res *model.ExecutionResult) error
}

// JudgeService consumes judge tasks from the redis stream. Messages whose judging
// hit an infrastructure failure stay pending and are reclaimed after claimIdle.
type JudgeService struct {
	log                loggerv2.Logger
	rdb                redis.Cmdable
	judger             executor.Judger
	publisher          Publisher
	consumerName       string
	concurrency        int
	claimIdle          time.Duration
	testcasePathPrefix string
	maxDeliveries      int64
	readBlock          time.Duration
}

func NewJudgeService(log loggerv2.Logger, rdb redis.Cmdable, judger executor.Judger, publisher Publisher, concurrency int, claimIdle time.Duration, testcasePathPrefix string, maxDeliveries int64) *JudgeService {
	hostname, err := os.Hostname()
	if err != nil {
		log.Error("failed to get hostname", logger.Error(err))
		panic(err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	return &JudgeService{
		log:                log,
		rdb:                rdb,
		judger:             judger,
		publisher:          publisher,
		consumerName:       fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano()),
		concurrency:        concurrency,
		claimIdle:          claimIdle,
		testcasePathPrefix: testcasePathPrefix,
		maxDeliveries:      maxDeliveries,
		readBlock:          time.Second,
	}
}

func (s *JudgeService) Start(ctx context.Context) error {
	s.log.InfoContext(ctx, "Starting judger service",
		logger.String("group", groupName),
		logger.Any("concurrency", s.concurrency))

	err := s.rdb.XGroupCreateMkStream(ctx, constants.JudgeTaskKey, groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.consume(ctx, name)
		}(fmt.Sprintf("%s-%d", s.consumerName, i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reclaimLoop(ctx)
	}()
	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.judger.Close(closeCtx); err != nil {
		s.log.ErrorContext(closeCtx, "failed to close judger", logger.Error(err))
	}
	return ctx.Err()
}

func (s *JudgeService) consume(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streamMsg, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    groupName,
				Consumer: consumer,
				Streams:  []string{constants.JudgeTaskKey, ">"}, // > 表示只接收新消息
				Count:    1,                                     // 每次读取 1 条消息
				Block:    s.readBlock,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.log.ErrorContext(ctx, "failed to read stream message", logger.Error(err))
				time.Sleep(100 * time.Millisecond) // 出错稍作等待
				continue
			}

			for _, stream := range streamMsg {
				for _, msg := range stream.Messages {
					s.log.InfoContext(ctx, "Received message", logger.String("id", msg.ID), logger.String("consumer", consumer))
					if err = s.processMessage(ctx, &msg, 1); err != nil {
						s.log.ErrorContext(ctx, "failed to process message", logger.String("id", msg.ID), logger.Error(err))
					}
				}
			}
		}
	}
}

func (s *JudgeService) reclaimLoop(ctx context.Context) {
	interval := s.claimIdle
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.reclaim(ctx); err != nil {
				if ctx.Err() == nil {
					s.log.ErrorContext(ctx, "failed to reclaim pending messages", logger.Error(err))
				}
			} else if n > 0 {
				s.log.InfoContext(ctx, "Reclaimed pending messages", logger.Any("count", n))
			}
		}
	}
}

// reclaim takes over messages idle longer than claimIdle and processes them again.
func (s *JudgeService) reclaim(ctx context.Context) (int, error) {
	claimed := 0
	start := "0-0"
	for {
		msgs, next, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   constants.JudgeTaskKey,
			Group:    groupName,
			MinIdle:  s.claimIdle,
			Start:    start,
			Count:    claimBatch,
			Consumer: s.consumerName + "-reclaim",
		}).Result()
		if err != nil {
			return claimed, err
		}
		for i := range msgs {
			claimed++
			if err = s.processMessage(ctx, &msgs[i], s.deliveryCount(ctx, msgs[i].ID)); err != nil {
				s.log.ErrorContext(ctx, "failed to process reclaimed message", logger.String("id", msgs[i].ID), logger.Error(err))
			}
		}
		if next == "0-0" || next == start {
			return claimed, nil
		}
		start = next
	}
}

// deliveryCount reads how many times id has been delivered; 0 when unknown.
func (s *JudgeService) deliveryCount(ctx context.Context, id string) int64 {
	entries, err := s.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: constants.JudgeTaskKey,
		Group:  groupName,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(entries) == 0 {
		if err != nil {
			s.log.WarnContext(ctx, "failed to read delivery count", logger.String("id", id), logger.Error(err))
		}
		return 0
	}
	return entries[0].RetryCount
}

func (s *JudgeService) processMessage(ctx context.Context, msg *redis.XMessage, deliveries int64) error {
	var task event.JudgeTask
	if err := decodeTask(msg.Values[constants.JudgeTaskField], &task); err != nil {
		// 无法解析的消息重试也不会成功, 直接确认
		messageTotal.WithLabelValues("dropped", "bad_payload").Inc()
		s.log.ErrorContext(ctx, "dropping undecodable task", logger.String("id", msg.ID), logger.Error(err))
		return s.ack(ctx, msg.ID)
	}

	taskCtx := loggerv2.ContextWithFields(ctx,
		logger.String("RequestID", task.RequestId),
		logger.Uint64("submission_id", task.SubmissionId))
	if err := s.handleJudgeTask(taskCtx, &task); err != nil {
		if deliveries < s.maxDeliveries {
			messageTotal.WithLabelValues("pending", "judge_failed").Inc()
			return fmt.Errorf("failed to handle judge task: %w", err)
		}
		// 超过最大投递次数, 发布 runtime_error 结果后确认, 避免无限重试
		s.log.ErrorContext(taskCtx, "giving up on judge task",
			logger.Any("deliveries", deliveries), logger.Error(err))
		res := executor.AbortedResult(task.ExecutionRequest(nil).TestCases,
			fmt.Sprintf("judging abandoned after %d attempts", deliveries))
		judgeTotal.WithLabelValues(string(res.Verdict)).Inc()
		if err = s.publisher.Publish(taskCtx, &task, res); err != nil {
			return fmt.Errorf("failed to publish abandoned result: %w", err)
		}
		messageTotal.WithLabelValues("acked", "abandoned").Inc()
		return s.ack(taskCtx, msg.ID)
	}
	messageTotal.WithLabelValues("acked", "ok").Inc()
	return s.ack(taskCtx, msg.ID)
}

func (s *JudgeService) ack(ctx context.Context, id string) error {
	if err := retry.Do(ctx, func() error {
		return s.rdb.XAck(ctx, constants.JudgeTaskKey, groupName, id).Err()
	}); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	s.log.InfoContext(ctx, "Acked message", logger.String("id", id))
	return nil
}

func (s *JudgeService) handleJudgeTask(ctx context.Context, task *event.JudgeTask) error {
	var cases []model.TestCase
	if len(task.TestCases) == 0 {
		var err error
		dir := filepath.Join(s.testcasePathPrefix, strconv.FormatUint(task.ProblemId, 10))
		cases, err = executor.LoadTestcases(dir)
		if err != nil {
			return fmt.Errorf("failed to load testcases: %w", err)
		}
	}

	startAt := time.Now()
	judgeInFlight.Inc()
	res, err := s.judger.Run(ctx, task.ExecutionRequest(cases))
	judgeInFlight.Dec()
	if err != nil {
		judgeTotal.WithLabelValues("infrastructure_error").Inc()
		return fmt.Errorf("failed to judge: %w", err)
	}
	judgeTotal.WithLabelValues(string(res.Verdict)).Inc()
	judgeDurationSeconds.WithLabelValues(string(res.Verdict)).Observe(time.Since(startAt).Seconds())
	s.log.InfoContext(ctx, "Submission judged",
		logger.String("verdict", string(res.Verdict)),
		logger.Any("passed", res.PassedCount),
		logger.Any("total", res.TotalCount))

	if err = s.publisher.Publish(ctx, task, res); err != nil {
		return err
	}
	return nil
}

// go-redis 读出的字段值为 string, 写入时可能是 []byte
func decodeTask(value any, task *event.JudgeTask) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("task field has type %T", value)
	}
	if err := proto.Unmarshal(raw, task); err != nil {
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return nil
}
