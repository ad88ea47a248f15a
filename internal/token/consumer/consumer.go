// Package consumer applies actions arriving on the actions topic and reports
// each outcome on the replies topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ftledger/internal/token/models"
	"ftledger/internal/token/ports"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/requestcontext"
)

// Consumer turns action records into dispatcher calls.
type Consumer struct {
	handler   ports.ActionHandler
	publisher ports.ReplyPublisher
	logger    *slog.Logger
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// New constructs a Consumer.
func New(handler ports.ActionHandler, publisher ports.ReplyPublisher, opts ...Option) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("action handler is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("reply publisher is required")
	}
	c := &Consumer{
		handler:   handler,
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process handles one record. The record key is the correlation id; a
// record without one gets a generated id so its reply is still addressable.
//
// Ledger rejections and undecodable payloads are answered on the replies
// topic and reported as success. Only a failed publish returns an error, in
// which case the record must not be committed.
func (c *Consumer) Process(ctx context.Context, key, value []byte) error {
	correlationID := string(key)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = requestcontext.WithRequestID(ctx, correlationID)

	reply, err := c.dispatch(ctx, value)

	env, encErr := models.NewReplyEnvelope(correlationID, reply, err)
	if encErr != nil {
		c.logger.ErrorContext(ctx, "failed to encode reply",
			"correlation_id", correlationID,
			"error", encErr,
		)
		env, _ = models.NewReplyEnvelope(correlationID, nil, dErrors.Wrap(encErr, dErrors.CodeInternal, "encode reply"))
	}

	if pubErr := c.publisher.Publish(ctx, correlationID, env); pubErr != nil {
		return fmt.Errorf("publish reply %s: %w", correlationID, pubErr)
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, value []byte) (models.Reply, error) {
	var envelope models.ActionEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		c.logger.WarnContext(ctx, "undecodable action record",
			"correlation_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed action envelope")
	}
	caller, action, err := envelope.Decode()
	if err != nil {
		c.logger.WarnContext(ctx, "undecodable action record",
			"correlation_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}
	ctx = requestcontext.WithCaller(ctx, caller)
	return c.handler.Handle(ctx, caller, action)
}
