// Package monitor tracks aggregate decision counters and publishes
// summary metrics on a fixed interval.
package monitor

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"
)

// Counters are the request-path counters. All fields are atomics so
// request-path components never contend with the monitoring loop.
type Counters struct {
	AuthAllowed  atomic.Int64
	AuthDenied   atomic.Int64
	AuthzAllowed atomic.Int64
	AuthzDenied  atomic.Int64
	NetAllowed   atomic.Int64
	NetBlocked   atomic.Int64

	// riskSumMilli accumulates risk scores in milli-units so the
	// average can be derived without a float atomic.
	riskSumMilli atomic.Int64
	riskCount    atomic.Int64
}

// ObserveRisk records a risk score for the running average
func (c *Counters) ObserveRisk(score float64) {
	c.riskSumMilli.Add(int64(math.Round(score * 1000)))
	c.riskCount.Add(1)
}

// Snapshot is a point-in-time view of the counters
type Snapshot struct {
	AuthAllowed  int64
	AuthDenied   int64
	AuthzAllowed int64
	AuthzDenied  int64
	NetAllowed   int64
	NetBlocked   int64
	AverageRisk  float64
}

// Snapshot reads all counters without locking
func (c *Counters) Snapshot() Snapshot {
	snap := Snapshot{
		AuthAllowed:  c.AuthAllowed.Load(),
		AuthDenied:   c.AuthDenied.Load(),
		AuthzAllowed: c.AuthzAllowed.Load(),
		AuthzDenied:  c.AuthzDenied.Load(),
		NetAllowed:   c.NetAllowed.Load(),
		NetBlocked:   c.NetBlocked.Load(),
	}
	if count := c.riskCount.Load(); count > 0 {
		snap.AverageRisk = float64(c.riskSumMilli.Load()) / 1000.0 / float64(count)
	}
	return snap
}

// Monitor publishes counter snapshots to Prometheus gauges on a fixed
// interval. It runs on its own goroutine under a tomb and never blocks
// request-path components.
type Monitor struct {
	counters *Counters
	interval time.Duration
	logger   *logrus.Logger
	tomb     tomb.Tomb

	decisions   *prometheus.GaugeVec
	averageRisk prometheus.Gauge
}

// New creates a monitor and registers its collectors
func New(counters *Counters, interval time.Duration, logger *logrus.Logger, registry prometheus.Registerer) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Monitor{
		counters: counters,
		interval: interval,
		logger:   logger,
		decisions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ztforge",
			Name:      "decisions",
			Help:      "Decisions made per component and outcome.",
		}, []string{"component", "outcome"}),
		averageRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ztforge",
			Name:      "average_risk_score",
			Help:      "Running average risk score across assessments.",
		}),
	}

	registry.MustRegister(m.decisions, m.averageRisk)
	return m
}

// Start launches the monitoring loop
func (m *Monitor) Start() {
	m.tomb.Go(m.run)
}

// Stop terminates the monitoring loop and waits for it to exit
func (m *Monitor) Stop() error {
	m.tomb.Kill(nil)
	return m.tomb.Wait()
}

func (m *Monitor) run() error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.publish()
		case <-m.tomb.Dying():
			m.publish()
			return nil
		}
	}
}

func (m *Monitor) publish() {
	snap := m.counters.Snapshot()

	m.decisions.WithLabelValues("authn", "allow").Set(float64(snap.AuthAllowed))
	m.decisions.WithLabelValues("authn", "deny").Set(float64(snap.AuthDenied))
	m.decisions.WithLabelValues("authz", "allow").Set(float64(snap.AuthzAllowed))
	m.decisions.WithLabelValues("authz", "deny").Set(float64(snap.AuthzDenied))
	m.decisions.WithLabelValues("netseg", "allow").Set(float64(snap.NetAllowed))
	m.decisions.WithLabelValues("netseg", "deny").Set(float64(snap.NetBlocked))
	m.averageRisk.Set(snap.AverageRisk)

	m.logger.WithFields(logrus.Fields{
		"auth_allowed":  snap.AuthAllowed,
		"auth_denied":   snap.AuthDenied,
		"authz_allowed": snap.AuthzAllowed,
		"authz_denied":  snap.AuthzDenied,
		"net_allowed":   snap.NetAllowed,
		"net_blocked":   snap.NetBlocked,
		"average_risk":  snap.AverageRisk,
	}).Debug("monitor snapshot")
}
