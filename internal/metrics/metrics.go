package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/version"
)

const namespace = "pairamid_live"

var allStates = []lifecycle.State{
	lifecycle.StateConnected,
	lifecycle.StateLost,
	lifecycle.StateRecovering,
	lifecycle.StateAbandoned,
}

// Metrics holds every collector of the process.
type Metrics struct {
	registry *prometheus.Registry

	State            *prometheus.GaugeVec
	Events           *prometheus.CounterVec
	Losses           *prometheus.CounterVec
	Polls            *prometheus.CounterVec
	Reloads          prometheus.Counter
	Abandonments     prometheus.Counter
	FallbackVisible  prometheus.Gauge
	RecoveryDuration *prometheus.HistogramVec
	Messages         *prometheus.CounterVec
	Fetches          *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	JournalRecords   *prometheus.CounterVec
	Generations      prometheus.Counter
	Info             *prometheus.GaugeVec

	mu     sync.Mutex
	lostAt time.Time
}

// New creates the collectors and registers them on a fresh registry along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifecycle_state",
			Help:      "Current lifecycle state (1 for the active state)",
		}, []string{"state"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Total lifecycle events by type",
		}, []string{"event"}),
		Losses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_losses_total",
			Help:      "Total channel losses that started a recovery cycle",
		}, []string{"kind"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_polls_total",
			Help:      "Total recovery polls by result",
		}, []string{"result"}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Total application reloads triggered by recovery",
		}),
		Abandonments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abandonments_total",
			Help:      "Total times the channel was abandoned",
		}),
		FallbackVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fallback_visible",
			Help:      "Whether the fallback view is visible (1) or not (0)",
		}),
		RecoveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recovery_duration_seconds",
			Help:      "Time from channel loss to the end of the recovery cycle",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 100, 300},
		}, []string{"outcome"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_messages_total",
			Help:      "Total channel messages by type and routing outcome",
		}, []string{"type", "outcome"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_fetches_total",
			Help:      "Total team snapshot fetches by result",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "team_fetch_duration_seconds",
			Help:      "Duration of team snapshot fetches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		JournalRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_records_total",
			Help:      "Total journal records by result",
		}, []string{"result"}),
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_generations_total",
			Help:      "Total application generations started",
		}),
		Info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Build information",
		}, []string{"version", "commit", "go_version"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.State,
		m.Events,
		m.Losses,
		m.Polls,
		m.Reloads,
		m.Abandonments,
		m.FallbackVisible,
		m.RecoveryDuration,
		m.Messages,
		m.Fetches,
		m.FetchDuration,
		m.JournalRecords,
		m.Generations,
		m.Info,
	)

	info := version.Get()
	m.Info.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)
	m.setState(lifecycle.StateConnected)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GenerationStarted counts a new application generation and resets the
// per-generation gauges.
func (m *Metrics) GenerationStarted() {
	m.Generations.Inc()
	m.setState(lifecycle.StateConnected)
	m.FallbackVisible.Set(0)

	m.mu.Lock()
	m.lostAt = time.Time{}
	m.mu.Unlock()
}

// Observe implements lifecycle.Observer.
func (m *Metrics) Observe(ev lifecycle.Event) {
	m.Events.WithLabelValues(ev.Type.String()).Inc()
	if ev.From != ev.To {
		m.setState(ev.To)
	}

	switch ev.Type {
	case lifecycle.EventLost:
		m.Losses.WithLabelValues(ev.Kind.String()).Inc()
		m.mu.Lock()
		m.lostAt = ev.At
		m.mu.Unlock()
	case lifecycle.EventPoll:
		result := "disconnected"
		if ev.Connected {
			result = "connected"
		}
		m.Polls.WithLabelValues(result).Inc()
	case lifecycle.EventReload:
		m.Reloads.Inc()
		m.endCycle("reload", ev.At)
	case lifecycle.EventAbandoned:
		m.Abandonments.Inc()
		m.endCycle("abandoned", ev.At)
	case lifecycle.EventFallbackShown:
		m.FallbackVisible.Set(1)
	case lifecycle.EventFallbackHidden:
		m.FallbackVisible.Set(0)
	}
}

// ObserveMessage implements teamdata.MessageObserver.
func (m *Metrics) ObserveMessage(msgType, outcome string) {
	if msgType == "" {
		msgType = "none"
	}
	m.Messages.WithLabelValues(msgType, outcome).Inc()
}

// ObserveFetch implements teamdata.FetchObserver.
func (m *Metrics) ObserveFetch(err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Fetches.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(took.Seconds())
}

// ObserveJournalFlush implements journal.FlushObserver.
func (m *Metrics) ObserveJournalFlush(records int, err error) {
	result := "written"
	if err != nil {
		result = "failed"
	}
	m.JournalRecords.WithLabelValues(result).Add(float64(records))
}

func (m *Metrics) setState(state lifecycle.State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) endCycle(outcome string, at time.Time) {
	m.mu.Lock()
	lostAt := m.lostAt
	m.lostAt = time.Time{}
	m.mu.Unlock()

	if !lostAt.IsZero() && !at.Before(lostAt) {
		m.RecoveryDuration.WithLabelValues(outcome).Observe(at.Sub(lostAt).Seconds())
	}
}
