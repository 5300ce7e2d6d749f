// Package metrics records engine activity as Prometheus collectors.
package metrics

import (
	"context"
	"strconv"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the engine metrics.
type Collectors struct {
	Sessions        *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Consults        *prometheus.CounterVec
	ConsultDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabula_sessions_total",
				Help: "Sessions started and finished",
			},
			[]string{"event"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabula_commands_total",
				Help: "Executed commands by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabula_command_duration_seconds",
				Help:    "Duration of command dispatch and rendering",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"tool"},
		),
		Consults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabula_consults_total",
				Help: "Decision-maker consultations by result",
			},
			[]string{"has_command", "failed"},
		),
		ConsultDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tabula_consult_duration_seconds",
				Help:    "Latency of decision-maker consultations",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}
	for _, col := range []prometheus.Collector{c.Sessions, c.Commands, c.CommandDuration, c.Consults, c.ConsultDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns lifecycle hooks that feed the collectors.
func (c *Collectors) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			c.Sessions.WithLabelValues("start").Inc()
		},
		OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) {
			c.Sessions.WithLabelValues("finish").Inc()
		},
		OnConsult: func(ctx context.Context, e *domain.ConsultEvent) {
			c.Consults.WithLabelValues(strconv.FormatBool(e.HasCommand), strconv.FormatBool(e.Err != nil)).Inc()
			c.ConsultDuration.Observe(e.Duration.Seconds())
		},
		OnResult: func(ctx context.Context, e *domain.CommandEvent) {
			c.Commands.WithLabelValues(e.Tool, string(e.Outcome)).Inc()
			c.CommandDuration.WithLabelValues(e.Tool).Observe(e.Duration.Seconds())
		},
	}
}
