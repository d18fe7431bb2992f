// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ruidmap/ruidmap/internal/logger"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

const (
	streamName = "RUIDMAP"

	headerRequestID  = "Request-ID"
	headerRetryCount = "Retry-Count"

	// maxRetries is the number of redeliveries before a failing message
	// moves to its subject's DLQ.
	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream
// stream covering all change-notification subjects exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"tasks.>", "projects.>", "data.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. The request ID from ctx
// travels in a header so subscribers can restore it. Payloads that fail
// schema validation go straight to the subject's DLQ instead of the
// main subject.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		slog.Warn("invalid payload routed to DLQ", "subject", subject, "error", err)
		return q.moveToDLQ(ctx, subject, data)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Failed messages are republished with an incremented retry count;
// after maxRetries they move to the subject's DLQ.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		hdrs := msg.Headers()

		msgCtx := context.Background()
		if id := hdrs.Get(headerRequestID); id != "" {
			msgCtx = logger.WithRequestID(msgCtx, id)
		}

		if err := handler(msgCtx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			q.retryOrDLQ(msg, hdrs)
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// retryOrDLQ republishes a failed message with an incremented retry
// count, or moves it to the DLQ once retries are exhausted. The original
// message is acked either way; on republish failure it is naked so
// JetStream redelivers.
func (q *Queue) retryOrDLQ(msg jetstream.Msg, hdrs nats.Header) {
	ctx := context.Background()

	if retryCount(hdrs) >= maxRetries {
		if err := q.moveToDLQ(ctx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("nats DLQ publish failed", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
		return
	}

	repub := &nats.Msg{Subject: msg.Subject(), Data: msg.Data(), Header: nats.Header{}}
	if id := hdrs.Get(headerRequestID); id != "" {
		repub.Header.Set(headerRequestID, id)
	}
	repub.Header.Set(headerRetryCount, strconv.Itoa(retryCount(hdrs)+1))

	if _, err := q.js.PublishMsg(ctx, repub); err != nil {
		slog.Error("nats retry publish failed", "subject", msg.Subject(), "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// moveToDLQ publishes the raw payload to the subject's dead-letter
// subject, bypassing validation.
func (q *Queue) moveToDLQ(ctx context.Context, subject string, data []byte) error {
	dlq := subject + ".dlq"
	if _, err := q.js.Publish(ctx, dlq, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", dlq, err)
	}
	return nil
}

func retryCount(hdrs nats.Header) int {
	n, err := strconv.Atoi(hdrs.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// KeyValue returns the named JetStream KV bucket, creating it with the
// given TTL if it does not exist. Used for the L2 query cache.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain processes pending messages, then closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

var _ messagequeue.Queue = (*Queue)(nil)
