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
	"golang.org/x/sync/errgroup"
)

// Server consumes request envelopes from a Redis list and answers them
// through a router.
type Server struct {
	rdb    redis.UniversalClient
	router *mcp.Router
	opts   Options
	logger *zap.Logger
}

// NewServer creates a server reading opts.Queue
func NewServer(rdb redis.UniversalClient, router *mcp.Router, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		rdb:    rdb,
		router: router,
		opts:   opts,
		logger: opts.Logger.With(zap.String("component", "redis_server"), zap.String("queue", opts.Queue)),
	}
}

// Serve runs the workers until ctx is canceled. It returns nil on
// cancellation.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving envelopes", zap.Int("workers", s.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			s.work(gctx, worker)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("stopped serving envelopes")
	return err
}

func (s *Server) work(ctx context.Context, worker int) {
	log := s.logger.With(zap.Int("worker", worker))
	backoff := 100 * time.Millisecond

	for ctx.Err() == nil {
		res, err := s.rdb.BRPop(ctx, s.opts.PollTimeout, s.opts.Queue).Result()
		switch {
		case err == nil:
			backoff = 100 * time.Millisecond
			// res is [key, value]
			s.Handle(ctx, []byte(res[1]))
		case stderrors.Is(err, redis.Nil):
		case ctx.Err() != nil:
			return
		default:
			log.Warn("failed to pop request", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}
	}
}

// Handle routes one encoded envelope and pushes the reply, if any.
func (s *Server) Handle(ctx context.Context, data []byte) {
	msg, err := decode(data)
	if err != nil {
		metrics.TransportMessages.WithLabelValues(s.opts.Queue, "received", "invalid").Inc()
		s.logger.Warn("dropping undecodable envelope", zap.Error(err))
		return
	}
	metrics.TransportMessages.WithLabelValues(s.opts.Queue, "received", "ok").Inc()

	resp, err := s.router.Route(ctx, msg)
	if err != nil {
		// the remote caller cannot receive a Go error, so configuration
		// errors travel as PROCESSING_ERROR envelopes
		s.logger.Error("request failed with configuration error",
			zap.String("message_id", msg.MessageID),
			zap.String("destination", msg.Destination),
			zap.Error(err))
		resp = mcp.CreateError(msg, mcp.CodeProcessingError, err.Error(), map[string]interface{}{
			"exception_type": string(errors.TypeOf(err)),
		})
	}
	if resp == nil {
		if !msg.IsRequest() {
			return
		}
		resp = mcp.CreateError(msg, mcp.CodeNoResponse, "No response received from '"+msg.Destination+"'", nil)
	}

	if err := s.reply(ctx, msg.MessageID, resp); err != nil {
		metrics.TransportMessages.WithLabelValues(s.opts.Queue, "replied", "failed").Inc()
		s.logger.Error("failed to push reply",
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return
	}
	metrics.TransportMessages.WithLabelValues(s.opts.Queue, "replied", "ok").Inc()
}

func (s *Server) reply(ctx context.Context, messageID string, resp *mcp.Message) error {
	data, err := s.opts.encode(resp)
	if err != nil {
		return err
	}

	// replies are written even when serving is shutting down
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	key := ReplyKey(messageID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.Expire(ctx, key, s.opts.ReplyTTL)
		return nil
	})
	return err
}
