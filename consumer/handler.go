package consumer

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

type MessageHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

type GroupHandler struct {
	handler MessageHandler
	log     loggerv2.Logger
}

func NewGroupHandler(handler MessageHandler, log loggerv2.Logger) sarama.ConsumerGroupHandler {
	return &GroupHandler{
		handler: handler,
		log:     log,
	}
}

func (h *GroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.log.InfoContext(session.Context(), "Consumer group session setup",
		logger.String("member", session.MemberID()),
		logger.Any("claims", session.Claims()))
	return nil
}

func (h *GroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.log.InfoContext(session.Context(), "Consumer group session cleanup", logger.String("member", session.MemberID()))
	return nil
}

// ConsumeClaim marks every handled message, failed ones included, so a bad
// message cannot block its partition. A message interrupted by session shutdown
// is left unmarked and redelivered to the next owner.
func (h *GroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				h.log.ErrorContext(ctx, "Failed to process message",
					logger.Error(err),
					logger.String("topic", msg.Topic),
					logger.String("partition", strconv.FormatInt(int64(msg.Partition), 10)),
					logger.String("offset", strconv.FormatInt(msg.Offset, 10)))
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}
