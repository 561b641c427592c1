package thankyou

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/st-keller/thankyou-client/component"
	"github.com/st-keller/thankyou-client/identity"
	"github.com/st-keller/thankyou-client/metrics"
	"github.com/st-keller/thankyou-client/registry"
	"github.com/st-keller/thankyou-client/rotation"
	"github.com/st-keller/thankyou-client/sink"
	"github.com/st-keller/thankyou-client/standard"
	"github.com/st-keller/thankyou-client/transport"
	"github.com/st-keller/thankyou-client/types"
)

// Config holds client configuration. Only Registry is required.
type Config struct {
	// BaseURL resolves relative widget endpoints such as "/thank-you/".
	BaseURL string
	// Registry holds the mount points widgets attach to.
	Registry *registry.Registry
	// Presenter renders widget events (component.Nop when nil).
	Presenter component.Presenter
	// Identity is shared by every widget (a fresh identity.Session when nil).
	Identity identity.Provider
	// Random drives label rotation and float offsets (time-seeded when nil).
	Random rotation.Source
	// Clock drives inactivity and banner timers (real clock when nil).
	Clock  quartz.Clock
	Logger slog.Logger
	// HTTPClient overrides the client built from Transport.
	HTTPClient *http.Client
	Transport  transport.Options
	// Sink overrides HTTP delivery entirely (every widget reports to it).
	Sink sink.Sink
	// Prometheus registers widget metrics when set.
	Prometheus prometheus.Registerer
	// RecentLogs is the size of the in-memory log buffer (100 when zero).
	RecentLogs int
}

// Client owns the collaborators shared by widgets.
type Client struct {
	baseURL      *url.URL
	registry     *registry.Registry
	presenter    component.Presenter
	identity     identity.Provider
	random       rotation.Source
	clock        quartz.Clock
	logger       slog.Logger
	http         *http.Client
	sink         sink.Sink
	metrics      *metrics.Metrics
	logs         *standard.RecentLogs
	connectivity *standard.ConnectivityTracker
	certificates *standard.CertificateMonitor

	nextID atomic.Int64

	mu       sync.Mutex
	closed   bool
	buttons  map[string]*ThankYouButton
	messages map[string]*MessageButton
}

// New creates a client and fires the process-wide readiness signal.
func New(config Config) (*Client, error) {
	if config.Registry == nil {
		return nil, &ConfigurationError{Field: "Registry", Reason: "required"}
	}

	var base *url.URL
	if config.BaseURL != "" {
		u, err := url.Parse(config.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &ConfigurationError{Field: "BaseURL", Reason: "must be an absolute URL", Err: err}
		}
		base = u
	}

	if config.Presenter == nil {
		config.Presenter = component.Nop
	}
	if config.Identity == nil {
		config.Identity = identity.NewSession()
	}
	if config.Clock == nil {
		config.Clock = quartz.NewReal()
	}
	if config.Random == nil {
		config.Random = rotation.NewSource(uint64(time.Now().UnixNano()))
	}

	httpClient := config.HTTPClient
	if httpClient == nil && config.Sink == nil {
		var err error
		httpClient, err = transport.BuildHTTP2Client(config.Transport)
		if err != nil {
			return nil, &ConfigurationError{Field: "Transport", Reason: "cannot build HTTP client", Err: err}
		}
	}

	m, err := metrics.New(config.Prometheus)
	if err != nil {
		return nil, &ConfigurationError{Field: "Prometheus", Reason: "cannot register metrics", Err: err}
	}

	logs := standard.NewRecentLogs(config.RecentLogs)
	logger := config.Logger.AppendSinks(logs).Named("thankyou")

	client := &Client{
		baseURL:      base,
		registry:     config.Registry,
		presenter:    config.Presenter,
		identity:     config.Identity,
		random:       config.Random,
		clock:        config.Clock,
		logger:       logger,
		http:         httpClient,
		sink:         config.Sink,
		metrics:      m,
		logs:         logs,
		connectivity: standard.NewConnectivityTracker(config.Clock),
		certificates: standard.NewCertificateMonitor(config.Clock, config.Transport.CAPath, config.Transport.CertPath),
		buttons:      make(map[string]*ThankYouButton),
		messages:     make(map[string]*MessageButton),
	}

	client.checkCertificates(context.Background())

	loaded.Broadcast()
	logger.Debug(context.Background(), "client loaded", slog.F("base_url", config.BaseURL))

	return client, nil
}

// Identity returns the identity shared by the client's widgets.
func (c *Client) Identity() identity.Provider {
	return c.identity
}

// Logs returns the in-memory buffer of recent log entries.
func (c *Client) Logs() *standard.RecentLogs {
	return c.logs
}

// Connectivity returns the submission outcome tracker.
func (c *Client) Connectivity() *standard.ConnectivityTracker {
	return c.connectivity
}

// Certificates returns the monitor over the transport's PEM files.
func (c *Client) Certificates() *standard.CertificateMonitor {
	return c.certificates
}

// Snapshot collects the client's diagnostics in a JSON-friendly shape:
// recent logs with per-level stats, per-endpoint submission health, and the
// transport certificates.
func (c *Client) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"recent_logs":  c.logs.GetData(),
		"connectivity": c.connectivity.GetData(),
		"certificates": c.certificates.GetData(),
	}
}

// checkCertificates logs a warning for each transport certificate that is
// expired or close to expiry.
func (c *Client) checkCertificates(ctx context.Context) {
	if err := c.certificates.Scan(); err != nil {
		c.logger.Warn(ctx, "certificate scan failed", slog.Error(err))
	}
	for _, cert := range c.certificates.Expired() {
		c.logger.Warn(ctx, "certificate expired",
			slog.F("purpose", cert.Purpose),
			slog.F("path", cert.Path),
			slog.F("valid_until", cert.ValidUntil),
		)
	}
	for _, cert := range c.certificates.Expiring(standard.ExpiryWarningDays) {
		c.logger.Warn(ctx, "certificate expires soon",
			slog.F("purpose", cert.Purpose),
			slog.F("path", cert.Path),
			slog.F("days_until_expiry", cert.DaysUntilExpiry),
		)
	}
}

// Metrics returns the widget metrics.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Close detaches every widget and waits for in-flight submissions.
// Pending clicks are flushed first.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	buttons := make([]*ThankYouButton, 0, len(c.buttons))
	for _, b := range c.buttons {
		buttons = append(buttons, b)
	}
	messages := make([]*MessageButton, 0, len(c.messages))
	for _, m := range c.messages {
		messages = append(messages, m)
	}
	c.mu.Unlock()

	for _, b := range buttons {
		b.Detach()
		b.Wait()
	}
	for _, m := range messages {
		m.Detach()
		m.Wait()
	}
}

// newWidgetID returns a unique id such as "thank-you-3".
func (c *Client) newWidgetID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, c.nextID.Add(1))
}

// attach enforces the attachment contract: fail fast on an unknown selector.
func (c *Client) attach(selector, widgetID string) error {
	if selector == "" {
		return &ConfigurationError{Field: "Selector", Reason: "required to attach the widget"}
	}
	if err := c.registry.Attach(selector, widgetID); err != nil {
		if xerrors.Is(err, registry.ErrNotFound) {
			return &ConfigurationError{Field: "Selector", Reason: fmt.Sprintf("no element matches %q", selector), Err: err}
		}
		return &ConfigurationError{Field: "Selector", Reason: "cannot attach", Err: err}
	}
	return nil
}

// sinkFor returns the sink a widget posts to.
func (c *Client) sinkFor(apiURL string) (sink.Sink, error) {
	if c.sink != nil {
		return c.sink, nil
	}

	target, err := c.resolve(apiURL)
	if err != nil {
		return nil, err
	}
	s, err := sink.NewHTTP(target, sink.Options{
		Client:       c.http,
		Clock:        c.clock,
		Logger:       c.logger,
		Connectivity: c.connectivity,
		Metrics:      c.metrics,
	})
	if err != nil {
		return nil, &ConfigurationError{Field: "APIURL", Reason: "cannot build sink", Err: err}
	}
	return s, nil
}

// resolve turns a widget endpoint into an absolute URL.
func (c *Client) resolve(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", &ConfigurationError{Field: "APIURL", Reason: "unparsable", Err: err}
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.baseURL == nil {
		return "", &ConfigurationError{Field: "APIURL", Reason: fmt.Sprintf("%q is relative and no BaseURL is configured", apiURL)}
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// validateConfig runs struct-tag validation and maps the first failure to a
// ConfigurationError.
func validateConfig(cfg interface{}) error {
	err := types.Validator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if xerrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{Field: fe.Field(), Reason: fmt.Sprintf("failed %q check", fe.Tag()), Err: err}
	}
	return &ConfigurationError{Field: "config", Reason: "invalid", Err: err}
}

// trackButton records b so Close detaches it. It fails once Close has begun;
// Close snapshots the widgets under the same lock.
func (c *Client) trackButton(b *ThankYouButton) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ConfigurationError{Field: "Client", Reason: "closed"}
	}
	c.buttons[b.id] = b
	return nil
}

func (c *Client) trackMessage(b *MessageButton) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ConfigurationError{Field: "Client", Reason: "closed"}
	}
	c.messages[b.id] = b
	return nil
}

// present hands events to the presenter in order. It must be called without
// any widget lock held so presenters can read widget state.
func (c *Client) present(events ...component.Event) {
	for _, e := range events {
		c.presenter.Present(e)
	}
}

func (c *Client) forgetButton(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buttons, id)
}

func (c *Client) forgetMessage(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, id)
}
