// Package sink delivers feedback payloads to the backend.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"

	"github.com/st-keller/thankyou-client/metrics"
	"github.com/st-keller/thankyou-client/standard"
	"github.com/st-keller/thankyou-client/types"
)

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 1 << 10

// Sink accepts a payload for delivery. Callers treat it as fire-and-forget:
// the returned error is for observation only and is never retried.
type Sink interface {
	Submit(ctx context.Context, payload types.Payload) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, payload types.Payload) error

func (f Func) Submit(ctx context.Context, payload types.Payload) error {
	return f(ctx, payload)
}

// TransportError is a network failure or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("POST %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("POST %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPSink posts JSON payloads to a single URL.
type HTTPSink struct {
	url          string
	client       *http.Client
	clock        quartz.Clock
	logger       slog.Logger
	connectivity *standard.ConnectivityTracker
	metrics      *metrics.Metrics
}

// Options are the optional collaborators of an HTTPSink.
type Options struct {
	Client       *http.Client
	Clock        quartz.Clock
	Logger       slog.Logger
	Connectivity *standard.ConnectivityTracker
	Metrics      *metrics.Metrics
}

// NewHTTP creates a sink posting to url.
func NewHTTP(url string, opts Options) (*HTTPSink, error) {
	if url == "" {
		return nil, xerrors.New("url required")
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &HTTPSink{
		url:          url,
		client:       opts.Client,
		clock:        opts.Clock,
		logger:       opts.Logger.Named("sink"),
		connectivity: opts.Connectivity,
		metrics:      opts.Metrics,
	}, nil
}

// URL returns the endpoint this sink posts to.
func (s *HTTPSink) URL() string {
	return s.url
}

// Submit posts the payload. The response body is opaque and only logged.
func (s *HTTPSink) Submit(ctx context.Context, payload types.Payload) error {
	kind := string(payload.Kind())

	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("marshal %s payload: %w", kind, err)
	}

	start := s.clock.Now()
	respBody, err := s.post(ctx, body)
	latency := s.clock.Since(start)
	s.metrics.RecordSubmission(kind, err)

	if err != nil {
		if s.connectivity != nil {
			s.connectivity.TrackFailure(s.url, kind, latency, err.Error())
		}
		s.logger.Warn(ctx, "feedback submission failed",
			slog.F("kind", kind),
			slog.F("url", s.url),
			slog.F("latency_ms", latency.Milliseconds()),
			slog.Error(err),
		)
		return err
	}

	if s.connectivity != nil {
		s.connectivity.TrackSuccess(s.url, kind, latency)
	}
	s.logger.Debug(ctx, "feedback submitted",
		slog.F("kind", kind),
		slog.F("url", s.url),
		slog.F("latency_ms", latency.Milliseconds()),
		slog.F("response", string(respBody)),
	)
	return nil
}

func (s *HTTPSink) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{URL: s.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			URL:        s.url,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(msg)),
		}
	}

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !xerrors.Is(err, io.EOF) {
		// The backend answered 2xx; an unreadable body is not a delivery failure.
		s.logger.Debug(ctx, "undecodable feedback response", slog.Error(err))
	}
	return out, nil
}
