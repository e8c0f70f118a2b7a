package redisbus

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client sends request envelopes to a Server over Redis.
type Client struct {
	rdb    redis.UniversalClient
	opts   Options
	logger *zap.Logger
}

// NewClient creates a client pushing to opts.Queue
func NewClient(rdb redis.UniversalClient, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		rdb:    rdb,
		opts:   opts,
		logger: opts.Logger.With(zap.String("component", "redis_client"), zap.String("queue", opts.Queue)),
	}
}

// Send pushes msg onto the request queue and waits for its reply. The
// wait ends with ctx: a deadline yields a timeout error and cancellation a
// canceled error.
func (c *Client) Send(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid request envelope")
	}
	data, err := c.opts.encode(msg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode request")
	}

	if err := c.rdb.LPush(ctx, c.opts.Queue, data).Err(); err != nil {
		metrics.TransportMessages.WithLabelValues(c.opts.Queue, "sent", "failed").Inc()
		return nil, contextOr(ctx, errors.Wrap(err, errors.ErrorTypeConnection, "failed to push request"))
	}
	metrics.TransportMessages.WithLabelValues(c.opts.Queue, "sent", "ok").Inc()

	key := ReplyKey(msg.MessageID)
	for {
		wait := c.opts.PollTimeout
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, contextOr(ctx, errors.New(errors.ErrorTypeTimeout, "no reply before deadline"))
			}
			if remaining < wait {
				wait = remaining
			}
		}

		res, err := c.rdb.BRPop(ctx, wait, key).Result()
		switch {
		case err == nil:
			reply, err := decode([]byte(res[1]))
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode reply")
			}
			return reply, nil
		case ctx.Err() != nil:
			return nil, contextOr(ctx, err)
		case stderrors.Is(err, redis.Nil):
			c.logger.Debug("waiting for reply", zap.String("message_id", msg.MessageID))
		default:
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read reply")
		}
	}
}

// contextOr reports the context error when ctx is done and err otherwise
func contextOr(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "timed out waiting for reply")
	case context.Canceled:
		return errors.Wrap(ctx.Err(), errors.ErrorTypeCanceled, "canceled while waiting for reply")
	}
	return err
}
