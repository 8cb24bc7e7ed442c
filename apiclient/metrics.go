package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "biteui_client"

// Metrics counts coordinator activity. A nil *Metrics records nothing.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	SessionsClosed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "requests_total", Help: "Number of API requests sent by method and status code."},
			[]string{"method", "code"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "token_refreshes_total", Help: "Number of token refresh attempts by outcome."},
			[]string{"outcome"},
		),
		SessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "sessions_cleared_total", Help: "Number of sessions cleared by the client by reason."},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) RegisterCollectors(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Requests, m.Refreshes, m.SessionsClosed} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) request(method string, code int) {
	if m == nil {
		return
	}
	label := "transport_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.Requests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) refresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sessionCleared(reason string) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(reason).Inc()
}
