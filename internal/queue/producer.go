package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photostack/internal/models"
)

const (
	IngestsStreamName  = "INGESTS"
	IngestsSubjectBase = "ingests"
)

// IngestEvent is the wire form announced for every ingestion, including
// dedups. Subscribers use it to mirror, notify, or reindex.
type IngestEvent struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category,omitempty"`
	Tags       []string  `json:"tags"`
	Embedded   bool      `json:"embedded"`
	Deduped    bool      `json:"deduped"`
	IngestedAt time.Time `json:"ingested_at"`
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the INGESTS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        IngestsStreamName,
		Subjects:    []string{IngestsSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Description: "Ingestion events",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishIngested announces a committed or deduplicated record. The subject
// carries the outcome so subscribers can filter on it.
func (p *Producer) PublishIngested(ctx context.Context, rec *models.ImageRecord, deduped bool) error {
	event := IngestEvent{
		ID:         rec.ID.String(),
		Filename:   rec.Filename,
		Tags:       rec.Tags,
		Embedded:   rec.Embedded,
		Deduped:    deduped,
		IngestedAt: rec.IngestedAt,
	}
	if rec.Category != nil {
		event.Category = string(*rec.Category)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ingest event: %w", err)
	}

	outcome := "committed"
	if deduped {
		outcome = "dedup"
	}
	subject := fmt.Sprintf("%s.%s", IngestsSubjectBase, outcome)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish ingest event: %w", err)
	}
	return nil
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
