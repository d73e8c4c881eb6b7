package server

import (
	"io"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/uber-go/tally/v4"
	"github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/zap"
)

const (
	metricLoginTotal            = "login_total"
	metricEOSLoginTotal         = "eos_login_total"
	metricFanoutPublishedTotal  = "fanout_published_total"
	metricFanoutDroppedTotal    = "fanout_dropped_total"
	metricWrapperCacheTotal     = "wrapper_cache_total"
	metricRegisteredLocalPlayer = "registered_local_players"
)

type Metrics interface {
	CountLogin(success bool)
	CountEOSLogin(success bool)
	CountFanoutPublished(event string)
	CountFanoutDropped(event string)
	CountWrapperCache(kind string, hit bool)
	GaugeLocalPlayers(count int)

	CustomCounter(name string, tags map[string]string, delta int64)
	CustomGauge(name string, tags map[string]string, value float64)
}

var _ Metrics = (*LocalMetrics)(nil)

type LocalMetrics struct {
	logger *zap.Logger
	scope  tally.Scope
}

func NewLocalMetrics(logger *zap.Logger, scope tally.Scope) *LocalMetrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &LocalMetrics{
		logger: logger,
		scope:  scope,
	}
}

// NewPrometheusScope builds a root scope reporting into registry. Close the returned
// closer on shutdown to flush the last interval.
func NewPrometheusScope(logger *zap.Logger, config *MetricsConfig, registry *prom.Registry) (tally.Scope, io.Closer) {
	reporter := prometheus.NewReporter(prometheus.Options{
		Registerer: registry,
		Gatherer:   registry,
		OnRegisterError: func(err error) {
			logger.Error("Error registering Prometheus metric", zap.Error(err))
		},
	})

	tags := map[string]string{}
	if config.Namespace != "" {
		tags["namespace"] = config.Namespace
	}

	return tally.NewRootScope(tally.ScopeOptions{
		Prefix:          config.Prefix,
		Tags:            tags,
		CachedReporter:  reporter,
		Separator:       prometheus.DefaultSeparator,
		SanitizeOptions: &prometheus.DefaultSanitizerOpts,
	}, config.ReportingInterval())
}

func resultTag(success bool) map[string]string {
	if success {
		return map[string]string{"result": "success"}
	}
	return map[string]string{"result": "failure"}
}

func (m *LocalMetrics) CountLogin(success bool) {
	m.CustomCounter(metricLoginTotal, resultTag(success), 1)
}

func (m *LocalMetrics) CountEOSLogin(success bool) {
	m.CustomCounter(metricEOSLoginTotal, resultTag(success), 1)
}

func (m *LocalMetrics) CountFanoutPublished(event string) {
	m.CustomCounter(metricFanoutPublishedTotal, map[string]string{"event": event}, 1)
}

func (m *LocalMetrics) CountFanoutDropped(event string) {
	m.CustomCounter(metricFanoutDroppedTotal, map[string]string{"event": event}, 1)
}

func (m *LocalMetrics) CountWrapperCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CustomCounter(metricWrapperCacheTotal, map[string]string{"kind": kind, "result": result}, 1)
}

func (m *LocalMetrics) GaugeLocalPlayers(count int) {
	m.CustomGauge(metricRegisteredLocalPlayer, nil, float64(count))
}

func (m *LocalMetrics) CustomCounter(name string, tags map[string]string, delta int64) {
	scope := m.scope
	if len(tags) != 0 {
		scope = scope.Tagged(tags)
	}
	scope.Counter(name).Inc(delta)
}

func (m *LocalMetrics) CustomGauge(name string, tags map[string]string, value float64) {
	scope := m.scope
	if len(tags) != 0 {
		scope = scope.Tagged(tags)
	}
	scope.Gauge(name).Update(value)
}
