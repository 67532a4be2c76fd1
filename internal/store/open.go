package store

import (
	"context"
	"fmt"
)

const (
	SinkFile     = "file"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

// Options selects and configures a sink.
type Options struct {
	Kind        string
	JSONLFile   string
	RedisURL    string
	RedisKey    string
	DatabaseURL string
}

// Open returns the sink named by opts.Kind.
func Open(ctx context.Context, opts Options) (Sink, error) {
	switch opts.Kind {
	case "", SinkFile:
		return NewFileSink(opts.JSONLFile), nil
	case SinkRedis:
		return NewRedisSink(ctx, opts.RedisURL, opts.RedisKey)
	case SinkPostgres:
		return NewPostgresSink(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, opts.Kind)
	}
}
