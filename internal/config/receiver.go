package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/subygan/receiver/internal/store"
)

// Receiver holds the JSONL receiver configuration, loaded from the
// environment.
type Receiver struct {
	Env             string
	Addr            string
	MaxConns        int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	MaxRetries int
	RetryDelay time.Duration

	Sink store.Options
}

const (
	defaultEnv             = "development"
	defaultAddr            = "0.0.0.0:8001"
	defaultMaxConns        = 1024
	defaultShutdownTimeout = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultJSONLFile       = "data.jsonl"
	defaultRedisURL        = "redis://localhost:6379/0"
)

// LoadDotEnv loads variables from the given .env files, or ".env" when none
// are named. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadReceiver reads receiver configuration from the environment. A set but
// malformed numeric or duration variable is an error.
func LoadReceiver() (Receiver, error) {
	var env envReader
	cfg := Receiver{
		Env:             getEnv("RECEIVER_ENV", defaultEnv),
		Addr:            getEnv("RECEIVER_ADDR", defaultAddr),
		MaxConns:        env.getInt("RECEIVER_MAX_CONNS", defaultMaxConns),
		ShutdownTimeout: env.getDuration("RECEIVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		ReadTimeout:     env.getDuration("RECEIVER_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout:    env.getDuration("RECEIVER_WRITE_TIMEOUT", defaultWriteTimeout),

		MaxRetries: env.getInt("RECEIVER_MAX_RETRIES", store.DefaultMaxRetries),
		RetryDelay: env.getDuration("RECEIVER_RETRY_DELAY", store.DefaultRetryDelay),

		Sink: store.Options{
			Kind:        getEnv("RECEIVER_SINK", store.SinkFile),
			JSONLFile:   getEnv("RECEIVER_JSONL_FILE", defaultJSONLFile),
			RedisURL:    getEnv("REDIS_URL", defaultRedisURL),
			RedisKey:    getEnv("RECEIVER_REDIS_KEY", store.DefaultRedisKey),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
	}
	if err := errors.Join(env.errs...); err != nil {
		return Receiver{}, err
	}

	if cfg.MaxConns < 1 {
		return Receiver{}, fmt.Errorf("RECEIVER_MAX_CONNS must be >= 1, got %d", cfg.MaxConns)
	}
	switch cfg.Sink.Kind {
	case store.SinkFile:
		if cfg.Sink.JSONLFile == "" {
			return Receiver{}, fmt.Errorf("RECEIVER_JSONL_FILE is required when RECEIVER_SINK=file")
		}
	case store.SinkRedis:
	case store.SinkPostgres:
		if cfg.Sink.DatabaseURL == "" {
			return Receiver{}, fmt.Errorf("DATABASE_URL is required when RECEIVER_SINK=postgres")
		}
	default:
		return Receiver{}, fmt.Errorf("%w: RECEIVER_SINK=%s", store.ErrUnknownSink, cfg.Sink.Kind)
	}
	return cfg, nil
}

// ErrInvalidEnv wraps every malformed environment value.
var ErrInvalidEnv = errors.New("invalid environment value")

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// envReader parses typed variables and collects the failures.
type envReader struct {
	errs []error
}

func (r *envReader) getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidEnv, key, v))
		return defaultValue
	}
	return n
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidEnv, key, v))
		return defaultValue
	}
	return d
}
