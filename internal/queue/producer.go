package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facesearch/internal/models"
)

const (
	FacesStreamName     = "FACES"
	FacesSubjectBase    = "faces"
	ReembedStreamName   = "REEMBED"
	ReembedSubjectBase  = "reembed"
	ensureStreamRetries = 30
)

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

func streamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        FacesStreamName,
			Subjects:    []string{FacesSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Face record lifecycle events",
		},
		{
			Name:        ReembedStreamName,
			Subjects:    []string{ReembedSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
			Duplicates:  10 * time.Minute,
			Description: "Re-embedding tasks for records from older extractors",
		},
	}
}

// EnsureStreams creates the JetStream streams, retrying once a second while
// NATS starts up.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := p.ensureOnce(ctx)
		if err == nil {
			return nil
		}
		if attempt == ensureStreamRetries {
			return fmt.Errorf("%w (after %d attempts)", err, attempt)
		}
		slog.Warn("ensure NATS streams (retrying...)", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (p *Producer) ensureOnce(ctx context.Context) error {
	for _, cfg := range streamConfigs() {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		slog.Info("ensured NATS stream", "name", cfg.Name)
	}
	return nil
}

// PublishEvent publishes a face lifecycle event.
func (p *Producer) PublishEvent(ctx context.Context, ev models.FaceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, EventSubject(ev), payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// PublishReembed queues a re-embedding task. Repeated requests for the same
// user and target version within the dedup window collapse into one.
func (p *Producer) PublishReembed(ctx context.Context, task models.ReembedTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal reembed task: %w", err)
	}
	subject := ReembedSubjectBase + "." + subjectToken(task.UserID)
	msgID := task.UserID + "@" + task.TargetVersion
	if _, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("publish reembed task: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending re-embedding tasks.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, ReembedStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

// EventSubject is faces.<action>.<user>, e.g. faces.registered.42.
func EventSubject(ev models.FaceEvent) string {
	action := strings.TrimPrefix(ev.Type, "face.")
	return FacesSubjectBase + "." + subjectToken(action) + "." + subjectToken(ev.UserID)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
