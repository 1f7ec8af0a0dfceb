package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the renderer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Utterances      *prometheus.CounterVec
	ScriptAttempts  *prometheus.CounterVec
	BackgroundLoads *prometheus.CounterVec
	RenderSeconds   prometheus.Histogram
	EpisodeSeconds  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Synthesized utterances by role and outcome.",
		}, []string{"role", "outcome"}),
		ScriptAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_attempts_total",
			Help:      "Script generation attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		BackgroundLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_loads_total",
			Help:      "Background bed loads by source (pcm_cache, file_cache, download, synthesized, none).",
		}, []string{"source"}),
		RenderSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_seconds",
			Help:      "Wall time to render a transcript to audio.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		EpisodeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_seconds",
			Help:      "Duration of rendered episodes.",
			Buckets:   []float64{30, 60, 120, 180, 300, 600, 1200},
		}),
	}
}

func (m *Metrics) ObserveUtterance(role string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Utterances.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) ObserveScriptAttempt(provider string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.ScriptAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveBackground(source string) {
	if m == nil {
		return
	}
	m.BackgroundLoads.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRender(wall, episode time.Duration) {
	if m == nil {
		return
	}
	m.RenderSeconds.Observe(wall.Seconds())
	m.EpisodeSeconds.Observe(episode.Seconds())
}

// Handler serves this registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
