package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/gogo/protobuf/proto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/to404hanga/online_judge_sandbox/cmd/resultcollector/repository"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/consumer"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/pkg404/gotools/retry"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const (
	ResultCollectorGroupID = "result_collector_group"
)

var (
	resultCollectorHandleInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "online_judge",
		Subsystem: "resultcollector",
		Name:      "handle_result_in_flight",
		Help:      "Current number of in-flight handleResult operations.",
	})

	resultCollectorHandleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "online_judge",
		Subsystem: "resultcollector",
		Name:      "handle_result_total",
		Help:      "Total number of handleResult operations.",
	}, []string{"result", "reason"})

	resultCollectorVerdictTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "online_judge",
		Subsystem: "resultcollector",
		Name:      "verdict_total",
		Help:      "Total number of collected results by verdict.",
	}, []string{"verdict"})

	resultCollectorHandleDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "online_judge",
		Subsystem: "resultcollector",
		Name:      "handle_result_duration_seconds",
		Help:      "Duration of handleResult operations in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 16),
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		resultCollectorHandleInFlight,
		resultCollectorHandleTotal,
		resultCollectorVerdictTotal,
		resultCollectorHandleDurationSeconds,
	)
}

type ResultCollectorService struct {
	log           loggerv2.Logger
	repo          repository.RecordRepository
	consumer      consumer.Consumer
	retryInterval time.Duration
}

func NewResultCollectorService(log loggerv2.Logger, cg sarama.ConsumerGroup, repo repository.RecordRepository, topics config.TopicConfig) *ResultCollectorService {
	s := &ResultCollectorService{
		log:           log,
		repo:          repo,
		retryInterval: time.Second,
	}
	handler := consumer.NewGroupHandler(s.handleResult, log)
	s.consumer = consumer.NewSaramaConsumer(cg, topics.Result, handler, log)
	return s
}

func (s *ResultCollectorService) Start(ctx context.Context) error {
	return s.consumer.Start(ctx)
}

func (s *ResultCollectorService) handleResult(ctx context.Context, msg *sarama.ConsumerMessage) (err error) {
	opStartTime := time.Now()
	result := "success"
	reason := "ok"

	resultCollectorHandleInFlight.Inc()
	defer func() {
		resultCollectorHandleInFlight.Dec()
		resultCollectorHandleTotal.WithLabelValues(result, reason).Inc()
		resultCollectorHandleDurationSeconds.WithLabelValues(result).Observe(time.Since(opStartTime).Seconds())
	}()

	var pbr event.JudgeResult
	err = proto.Unmarshal(msg.Value, &pbr)
	if err != nil {
		result = "error"
		reason = "unmarshal_judge_result"
		s.log.ErrorContext(ctx, "failed to unmarshal judge result", logger.Error(err))
		return fmt.Errorf("failed to unmarshal judge result: %w", err)
	}
	collectorCtx := loggerv2.ContextWithFields(ctx,
		logger.String("RequestID", pbr.RequestId),
		logger.Uint64("submission_id", pbr.SubmissionId))

	record, err := newRecord(&pbr)
	if err != nil {
		result = "error"
		reason = "encode_detail"
		s.log.ErrorContext(collectorCtx, "failed to encode result detail", logger.Error(err))
		return err
	}

	err = retry.Do(collectorCtx, func() error {
		errInternal := s.repo.Save(collectorCtx, record)
		if errInternal != nil {
			s.log.ErrorContext(collectorCtx, "failed to save judge record", logger.Error(errInternal))
			return fmt.Errorf("failed to save judge record: %w", errInternal)
		}
		return nil
	}, retry.WithBaseInterval(s.retryInterval))
	if err != nil {
		result = "error"
		reason = "db_save_record"
		return fmt.Errorf("failed to save judge record: %w", err)
	}

	resultCollectorVerdictTotal.WithLabelValues(pbr.Verdict).Inc()
	s.log.InfoContext(collectorCtx, "judge record saved", logger.String("verdict", pbr.Verdict))
	return nil
}

func newRecord(pbr *event.JudgeResult) (*repository.JudgeRecord, error) {
	detail, err := json.Marshal(pbr.ExecutionResult().Results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result detail: %w", err)
	}
	return &repository.JudgeRecord{
		SubmissionID: pbr.SubmissionId,
		RequestID:    pbr.RequestId,
		Verdict:      pbr.Verdict,
		Result:       pbr.Result,
		RuntimeMs:    pbr.RuntimeMs,
		MemoryKb:     pbr.MemoryKb,
		PassedCount:  pbr.PassedCount,
		TotalCount:   pbr.TotalCount,
		Detail:       string(detail),
	}, nil
}
