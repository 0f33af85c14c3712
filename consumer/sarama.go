package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const consumeErrorBackoff = time.Second

type SaramaConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler sarama.ConsumerGroupHandler
	log     loggerv2.Logger
}

func NewSaramaConsumer(group sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, log loggerv2.Logger) Consumer {
	return &SaramaConsumer{
		group:   group,
		topic:   topic,
		handler: handler,
		log:     log,
	}
}

// Start 阻塞直到 ctx 结束或消费组被关闭, 返回前关闭消费组
func (c *SaramaConsumer) Start(ctx context.Context) error {
	c.log.InfoContext(ctx, "Consumer starting", logger.String("topic", c.topic))
	defer func() {
		if err := c.group.Close(); err != nil {
			c.log.ErrorContext(ctx, "Close consumer group failed", logger.Error(err))
		}
	}()
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			c.log.ErrorContext(ctx, "Error from consumer", logger.String("topic", c.topic), logger.Error(err))
			select {
			case <-time.After(consumeErrorBackoff):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
