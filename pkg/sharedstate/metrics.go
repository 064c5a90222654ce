package sharedstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives store lifecycle events from a Cache.
// Implementations must be safe for concurrent use.
type Metrics interface {
	StoreCreated(implementation string)
	StoreReleased(implementation string)
	ListenerAdded(implementation string)
	ListenerRemoved(implementation string)
	ValueReceived(implementation string)
	ValueDropped(implementation string)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) StoreCreated(string)    {}
func (NopMetrics) StoreReleased(string)   {}
func (NopMetrics) ListenerAdded(string)   {}
func (NopMetrics) ListenerRemoved(string) {}
func (NopMetrics) ValueReceived(string)   {}
func (NopMetrics) ValueDropped(string)    {}

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactivator").
	Namespace string

	// Subsystem is the metrics subsystem (default: "sharedstate").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reactivator",
		Subsystem: "sharedstate",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// PrometheusMetrics exports cache activity as Prometheus metrics.
type PrometheusMetrics struct {
	storesActive    prometheus.Gauge
	listenersActive prometheus.Gauge
	storesCreated   *prometheus.CounterVec
	storesReleased  *prometheus.CounterVec
	updates         *prometheus.CounterVec
	dropped         *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the cache metrics.
// Registering twice with the same registry panics.
func NewPrometheusMetrics(opts ...MetricsOption) *PrometheusMetrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		storesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "stores_active",
			Help:        "Number of shared stores currently cached.",
			ConstLabels: cfg.ConstLabels,
		}),
		listenersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "listeners_active",
			Help:        "Number of listeners attached across all shared stores.",
			ConstLabels: cfg.ConstLabels,
		}),
		storesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "stores_created_total",
			Help:        "Total shared stores created, by implementation.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"implementation"}),
		storesReleased: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "stores_released_total",
			Help:        "Total shared stores torn down after their last listener left, by implementation.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"implementation"}),
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "updates_total",
			Help:        "Total values received from implementations, by implementation.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"implementation"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "updates_dropped_total",
			Help:        "Total values lost because the dispatcher refused them, by implementation.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"implementation"}),
	}
}

func (m *PrometheusMetrics) StoreCreated(impl string) {
	m.storesActive.Inc()
	m.storesCreated.WithLabelValues(impl).Inc()
}

func (m *PrometheusMetrics) StoreReleased(impl string) {
	m.storesActive.Dec()
	m.storesReleased.WithLabelValues(impl).Inc()
}

func (m *PrometheusMetrics) ListenerAdded(string) {
	m.listenersActive.Inc()
}

func (m *PrometheusMetrics) ListenerRemoved(string) {
	m.listenersActive.Dec()
}

func (m *PrometheusMetrics) ValueReceived(impl string) {
	m.updates.WithLabelValues(impl).Inc()
}

func (m *PrometheusMetrics) ValueDropped(impl string) {
	m.dropped.WithLabelValues(impl).Inc()
}
