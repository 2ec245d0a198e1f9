package telemetry

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/Zachkp/portfolio/internal/contact"
)

// Metrics counts contact form activity.
type Metrics struct {
	transitions *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// NewMetrics registers the contact collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "contact",
			Name:      "transitions_total",
			Help:      "Contact form state transitions.",
		}, []string{"from", "to", "outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portfolio",
			Subsystem: "contact",
			Name:      "sessions",
			Help:      "Live contact form sessions.",
		}),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTransition is a contact.Observer.
func (m *Metrics) ObserveTransition(tr contact.Transition) {
	outcome := "ok"
	if tr.Err != nil {
		outcome = "failed"
	}
	m.transitions.WithLabelValues(tr.From.String(), tr.To.String(), outcome).Inc()
}

// SetSessions records how many form sessions are live.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// UseHTTPMetrics adds request metrics and the /metrics endpoint to r.
// Paths are labelled by route pattern so project ids do not explode the
// label set.
func UseHTTPMetrics(r *gin.Engine) {
	p := ginprometheus.NewPrometheus("portfolio")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if route := c.FullPath(); route != "" {
			return route
		}
		return "unmatched"
	}
	p.Use(r)
}
