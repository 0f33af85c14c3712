package event

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/gogo/protobuf/proto"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

type Producer interface {
	Produce(ctx context.Context, msg *sarama.ProducerMessage) (int32, int64, error)
}

// ResultPublisher emits judging results, and for accepted verdicts the
// SubmissionAccepted event, keyed by submission id.
type ResultPublisher struct {
	producer Producer
	log      loggerv2.Logger
	topics   config.TopicConfig
	now      func() time.Time
}

func NewResultPublisher(producer Producer, log loggerv2.Logger, topics config.TopicConfig) *ResultPublisher {
	return &ResultPublisher{
		producer: producer,
		log:      log,
		topics:   topics,
		now:      time.Now,
	}
}

func (p *ResultPublisher) Publish(ctx context.Context, task *JudgeTask, res *model.ExecutionResult) error {
	if err := p.send(ctx, p.topics.Result, task.SubmissionId, NewJudgeResult(task, res)); err != nil {
		return fmt.Errorf("failed to publish judge result: %w", err)
	}
	if res.Verdict != model.VerdictAccepted {
		return nil
	}
	if err := p.send(ctx, p.topics.Accepted, task.SubmissionId, NewSubmissionAccepted(task, res, p.now())); err != nil {
		return fmt.Errorf("failed to publish submission accepted: %w", err)
	}
	return nil
}

func (p *ResultPublisher) send(ctx context.Context, topic string, submissionID uint64, msg proto.Message) error {
	value, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	partition, offset, err := p.producer.Produce(ctx, &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(submissionID, 10)),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return err
	}
	p.log.DebugContext(ctx, "event published",
		logger.String("topic", topic),
		logger.String("partition", strconv.FormatInt(int64(partition), 10)),
		logger.String("offset", strconv.FormatInt(offset, 10)))
	return nil
}
