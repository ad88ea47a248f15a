// Package kafka wraps franz-go for the ledger's action and reply topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"ftledger/internal/platform/config"
	"ftledger/internal/token/models"
)

// NewConsumerClient builds a group consumer for the actions topic. Offsets
// are committed manually, one record at a time, after its reply is produced.
func NewConsumerClient(cfg config.Kafka) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.ActionsTopic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return client, nil
}

// NewProducerClient builds a client used only to produce replies.
func NewProducerClient(cfg config.Kafka) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.RepliesTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return client, nil
}

// EnsureTopics creates the given topics when missing. Existing topics are
// left as they are.
func EnsureTopics(ctx context.Context, client *kgo.Client, partitions int32, replication int16, topics ...string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Publisher produces reply envelopes on the replies topic.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(client *kgo.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish produces env keyed by its correlation id and waits for the broker
// acknowledgement.
func (p *Publisher) Publish(ctx context.Context, key string, env models.ReplyEnvelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce reply: %w", err)
	}
	return nil
}

const commitTimeout = 10 * time.Second

// ProcessFunc handles a single record. A non-nil error leaves the record
// uncommitted.
type ProcessFunc func(ctx context.Context, key, value []byte) error

// Runner drives the poll, process, commit loop.
type Runner struct {
	client  *kgo.Client
	process ProcessFunc
	logger  *slog.Logger

	checkpoints *Checkpoints
	version     func() uint64
}

type RunnerOption func(*Runner)

// WithCheckpoints defers commits until the state version reported by
// version after each record is persisted. Records are handed to cp instead
// of being committed; the snapshot job releases them.
func WithCheckpoints(cp *Checkpoints, version func() uint64) RunnerOption {
	return func(r *Runner) {
		r.checkpoints = cp
		r.version = version
	}
}

func NewRunner(client *kgo.Client, process ProcessFunc, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{client: client, process: process, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled or the client is closed. Records are
// processed in offset order; a processing failure stops the loop so the
// record is redelivered after restart instead of being skipped. With
// checkpoints, a record is committed only after a snapshot covers it, so a
// crash before the next save replays it against the restored state.
func (r *Runner) Run(ctx context.Context) error {
	for {
		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			r.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			if ctx.Err() != nil {
				return nil
			}
			rec := iter.Next()
			if err := r.process(ctx, rec.Key, rec.Value); err != nil {
				return fmt.Errorf("process %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
			}
			if r.checkpoints != nil {
				r.checkpoints.Hold(rec, r.version())
				continue
			}
			if err := r.commit(ctx, rec); err != nil {
				return fmt.Errorf("commit %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
			}
		}
	}
}

// commit outlives cancellation of ctx: a record whose reply is already
// produced must not be redelivered because shutdown began.
func (r *Runner) commit(ctx context.Context, rec *kgo.Record) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	return r.client.CommitRecords(commitCtx, rec)
}
