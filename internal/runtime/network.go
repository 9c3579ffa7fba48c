package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/unitcast/internal/runtime/config"
	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
	"github.com/drblury/unitcast/internal/runtime/payload"
	transportpkg "github.com/drblury/unitcast/internal/runtime/transport"
)

const httpShutdownTimeout = 5 * time.Second

// NetworkDependencies holds optional collaborators of a Network.
type NetworkDependencies struct {
	// TransportFactory builds the transport. Defaults to the transport
	// registry.
	TransportFactory          transportpkg.Factory
	// MetricsRegisterer receives the network's collectors. When nil, the
	// default registerer is used if metrics are enabled in the config.
	MetricsRegisterer         prometheus.Registerer
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool
	// Hooks run after the built-in logging and metrics hooks.
	Hooks                     DispatchHooks
}

// Network is one unit's membership in a broadcast channel. It owns the
// payload registry, the feedback engine, the transport and the resilience
// loop that keeps the subscription alive.
type Network struct {
	conf     configpkg.Config
	channel  string
	unit     string
	logger   loggingpkg.ServiceLogger
	wmLogger watermill.LoggerAdapter

	registry   *payload.Registry
	engine     *feedback.Engine
	dispatcher *Dispatcher
	handler    message.HandlerFunc

	metrics        *Metrics
	publishMetrics *wmmetrics.PrometheusMetricsBuilder

	factory  transportpkg.Factory
	setupErr error

	mu        sync.RWMutex
	transport *transportpkg.Transport
	started   bool
	closed    bool
	cancel    context.CancelFunc

	loopDone   chan struct{}
	events     chan ConnectionEvent
	subscribed atomic.Bool
	closeOnce  sync.Once
	closeErr   error

	httpServers   map[int]*http.ServeMux
	servers       []*http.Server
	httpServersMu sync.Mutex
}

// NewNetwork constructs a Network for conf. Register payload types on the
// returned Network before calling Start.
//
// A misconfiguration (invalid config, unknown transport, malformed URI) is
// logged once and yields a degraded Network: Healthy reports false and Start
// and Broadcast return ErrTransportUnavailable. A transport that cannot be
// reached yet is not a misconfiguration; the resilience loop keeps trying.
func NewNetwork(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps NetworkDependencies) *Network {
	n, _ := newNetwork(conf, log, ctx, deps)
	return n
}

// TryNewNetwork behaves like NewNetwork but returns misconfiguration as an
// error instead of a degraded Network.
func TryNewNetwork(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps NetworkDependencies) (*Network, error) {
	n, err := newNetwork(conf, log, ctx, deps)
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	return n, nil
}

func newNetwork(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps NetworkDependencies) (*Network, error) {
	if log == nil {
		log = loggingpkg.Discard()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var c configpkg.Config
	if conf != nil {
		c = conf.WithDefaults()
	}

	n := &Network{
		conf:     c,
		channel:  c.Network,
		unit:     c.Unit,
		logger:   log.With(loggingpkg.LogFields{"unit": c.Unit, "channel": c.Network}),
		wmLogger: loggingpkg.NewWatermillAdapter(log),
		registry: payload.NewRegistry(),
		factory:  deps.TransportFactory,
		loopDone: make(chan struct{}),
		events:   make(chan ConnectionEvent, connectionEventBuffer),
	}
	if n.factory == nil {
		n.factory = transportpkg.DefaultFactory()
	}

	n.logger.Info("Creating network", loggingpkg.LogFields{
		"pubsub_system": c.PubSubSystem,
		"config":        c.String(),
	})

	switch {
	case conf == nil:
		n.setupErr = errspkg.NewConfigValidationError(errspkg.ErrConfigRequired)
	default:
		n.setupErr = errspkg.NewConfigValidationError(c.Validate())
	}

	n.setupMetrics(deps.MetricsRegisterer)
	n.setupStatus()
	n.engine = feedback.NewEngine(
		feedback.WithDefaultTimeout(c.FeedbackTimeout),
		feedback.WithObserver(n.metrics.ObserveFeedback),
	)

	hooks := LoggingHooks(n.logger).Merge(MetricsHooks(n.metrics)).Merge(deps.Hooks)
	n.dispatcher = NewDispatcher(n.channel, n.unit, n.registry, n.engine, hooks)

	if n.setupErr == nil {
		n.setupErr = n.setupHandler(deps)
	}
	if n.setupErr == nil {
		n.setupErr = n.connect(ctx)
	}

	if n.setupErr != nil {
		n.logger.Error("Network misconfigured, broadcasting is disabled", n.setupErr, nil)
		return n, n.setupErr
	}
	return n, nil
}

func (n *Network) setupMetrics(registerer prometheus.Registerer) {
	if registerer == nil && !n.conf.MetricsEnabled {
		return
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m, err := NewMetrics(registerer, n.channel)
	if err != nil {
		n.logger.Error("Registering metrics failed", err, nil)
		return
	}
	n.metrics = m

	builder := wmmetrics.NewPrometheusMetricsBuilder(registerer, metricsNamespace, "transport")
	n.publishMetrics = &builder

	if n.conf.MetricsEnabled && n.conf.MetricsPort > 0 {
		handler := promhttp.Handler()
		if gatherer, ok := registerer.(prometheus.Gatherer); ok {
			handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		}
		n.RegisterHTTPHandler(n.conf.MetricsPort, "/metrics", handler)
	}
}

func (n *Network) setupHandler(deps NetworkDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	handler, err := n.chainMiddlewares(n.dispatcher.HandleMessage, registrations)
	if err != nil {
		return err
	}
	n.handler = handler
	return nil
}

// connect builds the initial transport. Only misconfiguration is returned;
// transient failures are logged and left to the resilience loop.
func (n *Network) connect(ctx context.Context) error {
	tr, err := n.buildTransport(ctx)
	if err != nil {
		if transportpkg.IsConfigError(err) {
			return err
		}
		n.logger.Error("Transport unavailable, will retry after start", err, loggingpkg.LogFields{
			"pubsub_system": n.conf.PubSubSystem,
		})
		return nil
	}
	n.mu.Lock()
	n.transport = &tr
	n.mu.Unlock()
	return nil
}

func (n *Network) buildTransport(ctx context.Context) (transportpkg.Transport, error) {
	buildCtx, cancel := context.WithTimeout(ctx, n.conf.TransportTimeout)
	defer cancel()

	tr, err := n.factory.Build(buildCtx, &n.conf, n.wmLogger)
	if err != nil {
		return transportpkg.Transport{}, err
	}
	if n.publishMetrics != nil {
		decorated, err := n.publishMetrics.DecoratePublisher(tr.Publisher)
		if err != nil {
			n.logger.Error("Decorating publisher with metrics failed", err, nil)
		} else {
			tr.Publisher = decorated
		}
	}
	return tr, nil
}

// ensureTransport returns the subscriber of the held transport, building a
// new transport when none is held.
func (n *Network) ensureTransport(ctx context.Context) (message.Subscriber, error) {
	n.mu.RLock()
	tr := n.transport
	n.mu.RUnlock()
	if tr != nil {
		return tr.Subscriber, nil
	}

	built, err := n.buildTransport(ctx)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		_ = built.Close()
		return nil, errspkg.ErrNetworkClosed
	}
	n.transport = &built
	n.mu.Unlock()
	return built.Subscriber, nil
}

func (n *Network) dropTransport() error {
	n.mu.Lock()
	tr := n.transport
	n.transport = nil
	n.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Close()
}

func (n *Network) currentPublisher() message.Publisher {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.transport == nil {
		return nil
	}
	return n.transport.Publisher
}

func (n *Network) isClosed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.closed
}

func (n *Network) unavailable() error {
	return fmt.Errorf("%w: %w", errspkg.ErrTransportUnavailable, n.setupErr)
}

// Start launches the resilience loop and the HTTP servers. It returns once
// they are running; the loop stops when ctx is cancelled or Close is called.
func (n *Network) Start(ctx context.Context) error {
	if n.setupErr != nil {
		return n.unavailable()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		return errspkg.ErrNetworkClosed
	case n.started:
		n.mu.Unlock()
		return errspkg.ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	n.started = true
	n.cancel = cancel
	n.mu.Unlock()

	n.startHTTPServers()
	go n.supervise(loopCtx)
	return nil
}

// Close stops the resilience loop, abandons open feedback sessions and
// releases the transport and HTTP servers. It is safe to call more than once.
func (n *Network) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		started := n.started
		cancel := n.cancel
		n.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if started {
			<-n.loopDone
		} else {
			close(n.loopDone)
		}

		n.engine.Close()
		n.closeErr = errors.Join(n.stopHTTPServers(), n.dropTransport())
		close(n.events)

		n.logger.Info("Network closed", nil)
	})
	return n.closeErr
}

// Done is closed once the resilience loop has exited.
func (n *Network) Done() <-chan struct{} { return n.loopDone }

// Unit returns the local unit identity.
func (n *Network) Unit() string { return n.unit }

// Channel returns the broadcast channel name.
func (n *Network) Channel() string { return n.channel }

// Registry returns the payload registry owned by this network.
func (n *Network) Registry() *payload.Registry { return n.registry }

// Feedback returns the feedback engine owned by this network.
func (n *Network) Feedback() *feedback.Engine { return n.engine }

// Dispatcher returns the dispatcher inbound messages are fed to.
func (n *Network) Dispatcher() *Dispatcher { return n.dispatcher }

// Logger returns the network's logger.
func (n *Network) Logger() loggingpkg.ServiceLogger { return n.logger }

// Healthy reports whether the network was configured correctly. A healthy
// network may still be temporarily disconnected; see Subscribed.
func (n *Network) Healthy() bool { return n.setupErr == nil }

// Err returns the misconfiguration that degraded the network, if any.
func (n *Network) Err() error { return n.setupErr }

// Subscribed reports whether the unit currently holds a subscription.
func (n *Network) Subscribed() bool { return n.subscribed.Load() }

// ConnectionEvents delivers resilience loop events. Events are dropped when
// nobody reads them. The channel is closed by Close.
func (n *Network) ConnectionEvents() <-chan ConnectionEvent { return n.events }

// Capabilities describes the configured transport.
func (n *Network) Capabilities() transportpkg.Capabilities {
	return transportpkg.GetCapabilities(n.conf.PubSubSystem)
}

// Config returns a copy of the effective configuration.
func (n *Network) Config() configpkg.Config { return n.conf }

// AwaitFeedback blocks until the session id ends or ctx is done.
func (n *Network) AwaitFeedback(ctx context.Context, id string) (feedback.Result, error) {
	return n.engine.Await(ctx, id)
}

// RegisterHTTPHandler serves handler on port once the network starts.
func (n *Network) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	n.httpServersMu.Lock()
	defer n.httpServersMu.Unlock()

	if n.httpServers == nil {
		n.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := n.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		n.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (n *Network) startHTTPServers() {
	n.httpServersMu.Lock()
	defer n.httpServersMu.Unlock()

	for port, mux := range n.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		n.servers = append(n.servers, srv)
		n.logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (n *Network) stopHTTPServers() error {
	n.httpServersMu.Lock()
	servers := n.servers
	n.servers = nil
	n.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}
