package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeReembed starts workerCount goroutines processing re-embedding tasks.
// Failed tasks are redelivered up to three times.
func (c *Consumer) ConsumeReembed(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	cons, err := c.consumer(ctx, ReembedStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    3,
		FilterSubject: ReembedSubjectBase + ".>",
	})
	if err != nil {
		return err
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)
	go func() {
		defer close(msgCh)
		fetchLoop(ctx, cons, workerCount, func(msg jetstream.Msg) bool {
			select {
			case msgCh <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				settle(ctx, msg, handler, "worker", workerID)
			}
		}(i)
	}

	slog.Info("reembed consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumeEvents delivers new face events to handler, for websocket fan-out.
func (c *Consumer) ConsumeEvents(ctx context.Context, consumerName string, handler MessageHandler) error {
	cons, err := c.consumer(ctx, FacesStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: FacesSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return err
	}

	go fetchLoop(ctx, cons, 10, func(msg jetstream.Msg) bool {
		settle(ctx, msg, handler, "consumer", consumerName)
		return true
	})

	slog.Info("event consumer started", "consumer", consumerName)
	return nil
}

func (c *Consumer) consumer(ctx context.Context, streamName string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", streamName, err)
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}
	return cons, nil
}

// fetchLoop pulls batches until ctx is done or deliver returns false.
func fetchLoop(ctx context.Context, cons jetstream.Consumer, batchSize int, deliver func(jetstream.Msg) bool) {
	for ctx.Err() == nil {
		batch, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("fetch error", "error", err)
			time.Sleep(time.Second)
			continue
		}
		for msg := range batch.Messages() {
			if !deliver(msg) {
				return
			}
		}
	}
}

func settle(ctx context.Context, msg jetstream.Msg, handler MessageHandler, logKey string, logVal any) {
	if err := handler(ctx, msg); err != nil {
		slog.Error("process message error", logKey, logVal, "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
