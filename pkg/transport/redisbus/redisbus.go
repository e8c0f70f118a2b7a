// Package redisbus carries envelopes over Redis lists so that callers in
// other processes can reach the bridge.
//
// A caller LPUSHes an encoded REQUEST onto the request queue and blocks on
// the list reply:<message_id>. A Server pops requests with BRPOP, routes
// them and pushes the encoded reply to that list with a TTL, so replies
// nobody collects expire.
//
// Envelopes at or above Options.CompressThreshold are compressed with
// Options.Compression. Readers accept plain and compressed payloads alike.
package redisbus

import (
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/compression"
	"github.com/ajitpratap0/mcpbridge/pkg/config"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReplyKeyPrefix prefixes the list a reply is pushed to
const ReplyKeyPrefix = "reply:"

// Defaults used when Options leave a field unset
const (
	DefaultQueue       = "mcpbridge:requests"
	DefaultReplyTTL    = time.Minute
	DefaultPollTimeout = 5 * time.Second
	DefaultWorkers     = 4
	DefaultThreshold   = 1024
)

// ReplyKey returns the list the reply to messageID is pushed to
func ReplyKey(messageID string) string {
	return ReplyKeyPrefix + messageID
}

// Options configures a Server or Client
type Options struct {
	Queue       string
	ReplyTTL    time.Duration
	PollTimeout time.Duration
	Workers     int
	Logger      *zap.Logger

	// Compression applies to envelopes of at least CompressThreshold bytes
	Compression       compression.Algorithm
	CompressThreshold int
}

func (o Options) withDefaults() Options {
	if o.Queue == "" {
		o.Queue = DefaultQueue
	}
	if o.ReplyTTL <= 0 {
		o.ReplyTTL = DefaultReplyTTL
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Compression == "" {
		o.Compression = compression.None
	}
	if o.CompressThreshold <= 0 {
		o.CompressThreshold = DefaultThreshold
	}
	return o
}

// OptionsFromConfig maps the transport configuration onto Options
func OptionsFromConfig(cfg config.TransportConfig, logger *zap.Logger) Options {
	return Options{
		Queue:       cfg.Queue,
		ReplyTTL:    cfg.ReplyTTL,
		PollTimeout: cfg.PollTimeout,
		Workers:     cfg.Workers,
		Logger:      logger,

		Compression:       compression.Algorithm(cfg.Compression),
		CompressThreshold: cfg.CompressThreshold,
	}
}

// encode serializes msg, compressing it when it is large enough
func (o Options) encode(msg *mcp.Message) ([]byte, error) {
	data, err := mcp.Encode(msg)
	if err != nil {
		return nil, err
	}
	if o.Compression == compression.None || len(data) < o.CompressThreshold {
		return data, nil
	}
	c, err := compression.NewCompressor(o.Compression)
	if err != nil {
		return nil, err
	}
	return compression.Frame(c, data)
}

// decode accepts plain and compressed envelopes
func decode(data []byte) (*mcp.Message, error) {
	plain, err := compression.Unframe(data)
	if err != nil {
		return nil, err
	}
	return mcp.Decode(plain)
}

// NewRedisClient opens a client for the configured Redis server
func NewRedisClient(cfg config.TransportConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
