package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/agendaslug/agenda/libs/kafkax"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers    string
	Topic      string
	QueueSize  int
	BatchSize  int
	FlushEvery time.Duration
}

type queued struct {
	ctx context.Context
	evt SlotsGenerated
}

// Publisher buffers events in memory and writes them to Kafka from Run.
// Emit never blocks the request path; events are dropped when the queue is full.
type Publisher struct {
	writer     messageWriter
	logger     *slog.Logger
	topic      string
	queue      chan queued
	batchSize  int
	flushEvery time.Duration
}

func NewPublisher(logger *slog.Logger, cfg PublisherConfig) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkax.SplitBrokers(cfg.Brokers)...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(writer, logger, cfg)
}

func newPublisher(writer messageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = TopicSlotsGenerated
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = time.Second
	}
	return &Publisher{
		writer:     writer,
		logger:     logger,
		topic:      cfg.Topic,
		queue:      make(chan queued, cfg.QueueSize),
		batchSize:  cfg.BatchSize,
		flushEvery: cfg.FlushEvery,
	}
}

func (p *Publisher) Emit(ctx context.Context, evt SlotsGenerated) {
	// Keep trace context but not the request's cancellation.
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		p.logger.Warn("slot event dropped (queue full)", "tenant", evt.Tenant)
	}
}

func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("kafka writer close failed", "err", err)
		}
	}()

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, p.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := p.writer.WriteMessages(ctx, batch...); err != nil {
			p.logger.Error("slot events publish failed", "err", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			p.drain(&batch)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return
		case q := <-p.queue:
			msg, err := p.message(q)
			if err != nil {
				p.logger.Error("failed to build slot event", "err", err)
				continue
			}
			batch = append(batch, msg)
			if len(batch) >= p.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (p *Publisher) drain(batch *[]kafka.Message) {
	for {
		select {
		case q := <-p.queue:
			if msg, err := p.message(q); err == nil {
				*batch = append(*batch, msg)
			}
		default:
			return
		}
	}
}

func (p *Publisher) message(q queued) (kafka.Message, error) {
	payload, err := json.Marshal(q.evt)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(q.evt.Tenant),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(p.topic)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(q.ctx, msg.Headers)
	return msg, nil
}
