package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one record. The record is committed only when it returns nil,
// so an error leaves it for redelivery to the group.
type Handler func(key, value []byte) error

// Consumer reads one topic as a member of a consumer group. customs-worker runs
// several of them in the same group to spread SubmissionRequested partitions.
type Consumer struct {
	r   messageReader
	log *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	c := newConsumerWithReader(kafka.NewReader(cfg))
	c.log = slog.With("topic", topic, "group", groupID)
	return c
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, log: slog.Default()}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume runs until fetching fails (ctx cancellation included) or h rejects a record.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		log := c.log.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

		if err := h(msg.Key, msg.Value); err != nil {
			log.Warn("record left uncommitted", "err", err)
			return errors.Wrapf(err, "handle partition %d offset %d", msg.Partition, msg.Offset)
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
		log.Debug("record committed")
	}
}
