// Package hammer fires a fixed number of concurrent POST requests at a single
// endpoint and waits for every one of them to return.
package hammer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultURL         = "http://localhost:8001/append/"
	DefaultRequests    = 500
	DefaultTimeout     = 10 * time.Second
	DefaultContentType = "application/json"

	// maxErrors bounds how many request errors a Result keeps.
	maxErrors = 20
)

var ErrInvalidOptions = errors.New("invalid options")

// BodySource returns the request body for the i-th request.
type BodySource interface {
	Body(i int) ([]byte, error)
}

// BodyFunc adapts a plain function to BodySource.
type BodyFunc func(i int) ([]byte, error)

func (f BodyFunc) Body(i int) ([]byte, error) { return f(i) }

// Options controls a single run.
type Options struct {
	URL      string
	Requests int
	// Concurrency caps in-flight requests. Zero fires all of them at once.
	Concurrency int
	Timeout     time.Duration
	ContentType string
	Expect      *Expectation

	// OnDone is called with the number of finished requests after each one
	// exits. It must be safe for concurrent use.
	OnDone func(done int)

	Client *http.Client
	Logger *slog.Logger
}

// Result summarises a finished run.
type Result struct {
	Sent       int
	Succeeded  int
	Failed     int
	Mismatched int
	Statuses   map[int]int
	Errors     []error
	Elapsed    time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("%w: url %q: %v", ErrInvalidOptions, o.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url %q: scheme must be http or https", ErrInvalidOptions, o.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q: missing host", ErrInvalidOptions, o.URL)
	}
	if o.Requests < 1 {
		return fmt.Errorf("%w: requests must be >= 1, got %d", ErrInvalidOptions, o.Requests)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrInvalidOptions, o.Concurrency)
	}
	if o.Concurrency == 0 || o.Concurrency > o.Requests {
		o.Concurrency = o.Requests
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConns = o.Concurrency
		tr.MaxIdleConnsPerHost = o.Concurrency
		o.Client = &http.Client{Transport: tr, Timeout: o.Timeout}
	}
	return nil
}

type outcome struct {
	status   int
	err      error
	mismatch bool
}

// Run sends opts.Requests POST requests and blocks until all have returned.
// Failed requests are not retried. Run only returns an error when the options
// are invalid; per-request failures are reported in the Result.
func Run(ctx context.Context, opts Options, bodies BodySource) (Result, error) {
	if err := opts.normalize(); err != nil {
		return Result{}, err
	}
	if bodies == nil {
		return Result{}, fmt.Errorf("%w: nil body source", ErrInvalidOptions)
	}

	log := opts.Logger
	log.Debug("run.start", "url", opts.URL, "requests", opts.Requests, "concurrency", opts.Concurrency)

	outcomes := make([]outcome, opts.Requests)
	sem := make(chan struct{}, opts.Concurrency)
	var done atomic.Int32
	var wg sync.WaitGroup

	t0 := time.Now()
	for i := 0; i < opts.Requests; i++ {
		sem <- struct{}{}
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				<-sem
				n := done.Add(1)
				if opts.OnDone != nil {
					opts.OnDone(int(n))
				}
			}()
			outcomes[i] = fire(ctx, &opts, bodies, i)
			if err := outcomes[i].err; err != nil {
				log.Debug("request.failed", "request", i, "err", err)
			}
		}()
	}
	wg.Wait()

	res := Result{
		Sent:     opts.Requests,
		Statuses: make(map[int]int),
		Elapsed:  time.Since(t0),
	}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			res.Failed++
			if len(res.Errors) < maxErrors {
				res.Errors = append(res.Errors, o.err)
			}
		case o.status < 200 || o.status >= 300:
			res.Failed++
		case o.mismatch:
			res.Mismatched++
		default:
			res.Succeeded++
		}
		if o.status != 0 {
			res.Statuses[o.status]++
		}
	}
	log.Debug("run.done", "succeeded", res.Succeeded, "failed", res.Failed, "elapsed", res.Elapsed)
	return res, nil
}

func fire(ctx context.Context, opts *Options, bodies BodySource, i int) outcome {
	body, err := bodies.Body(i)
	if err != nil {
		return outcome{err: fmt.Errorf("request %d: build body: %w", i, err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(body))
	if err != nil {
		return outcome{err: fmt.Errorf("request %d: %w", i, err)}
	}
	req.Header.Set("Content-Type", opts.ContentType)

	resp, err := opts.Client.Do(req)
	if err != nil {
		return outcome{err: fmt.Errorf("request %d: %w", i, err)}
	}
	defer resp.Body.Close()

	o := outcome{status: resp.StatusCode}
	if opts.Expect == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return o
	}
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		o.err = fmt.Errorf("request %d: read body: %w", i, err)
		return o
	}
	if ok, _ := opts.Expect.Match(rb); !ok {
		o.mismatch = true
	}
	return o
}
