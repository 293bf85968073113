// Package metrics exposes a Prometheus registry instrumenting the proxy's
// connection lifecycle and filtering behavior.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every Prometheus metric pgrollback emits.
type Collector struct {
	Registry *prometheus.Registry

	clientsActive      prometheus.Gauge
	clientsTotal       prometheus.Counter
	backendDialTotal   *prometheus.CounterVec
	backendLossTotal   prometheus.Counter
	messagesFiltered   *prometheus.CounterVec
	queriesByClass     *prometheus.CounterVec
	savepointsActive   prometheus.Gauge
	bytesToBackend     prometheus.Counter
	bytesToClient      prometheus.Counter
}

// New creates and registers pgrollback's metrics on a fresh registry. Safe
// to call more than once (e.g. in tests), since each call is independent.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		clientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgrollback_clients_active",
			Help: "Number of client connections currently attached to a backend session",
		}),
		clientsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgrollback_clients_total",
			Help: "Total client connections accepted",
		}),
		backendDialTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgrollback_backend_dial_total",
			Help: "Backend dial attempts by outcome",
		}, []string{"outcome"}),
		backendLossTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgrollback_backend_loss_total",
			Help: "Times the shared backend session was invalidated by a disconnect",
		}),
		messagesFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgrollback_messages_filtered_total",
			Help: "Messages filtered, by direction and verdict",
		}, []string{"direction", "verdict"}),
		queriesByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgrollback_queries_by_class_total",
			Help: "Query messages observed, labeled by statement shape (observability only)",
		}, []string{"class"}),
		savepointsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgrollback_savepoints_active",
			Help: "Savepoints currently pushed across all client sessions",
		}),
		bytesToBackend: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgrollback_bytes_to_backend_total",
			Help: "Bytes written to the shared backend connection",
		}),
		bytesToClient: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgrollback_bytes_to_client_total",
			Help: "Bytes written to client connections",
		}),
	}

	reg.MustRegister(
		c.clientsActive,
		c.clientsTotal,
		c.backendDialTotal,
		c.backendLossTotal,
		c.messagesFiltered,
		c.queriesByClass,
		c.savepointsActive,
		c.bytesToBackend,
		c.bytesToClient,
	)

	return c
}

// ClientAttached records a new client joining a backend session.
func (c *Collector) ClientAttached() {
	c.clientsTotal.Inc()
	c.clientsActive.Inc()
}

// ClientDetached records a client leaving a backend session.
func (c *Collector) ClientDetached() {
	c.clientsActive.Dec()
}

// BackendDialed records the outcome of a dial attempt ("ok" or "error").
func (c *Collector) BackendDialed(outcome string) {
	c.backendDialTotal.WithLabelValues(outcome).Inc()
}

// BackendLost records the shared backend session being invalidated.
func (c *Collector) BackendLost() {
	c.backendLossTotal.Inc()
}

// MessageFiltered records one filtering verdict ("transmit", "translate",
// "drop", "spoof", or "mixed(<transmitted>,<spoofed>)" for a verdict that
// both forwards and spoofs) for one direction ("frontend" or "backend").
func (c *Collector) MessageFiltered(direction, verdict string) {
	c.messagesFiltered.WithLabelValues(direction, verdict).Inc()
}

// QueryObserved records one Query message's statement-shape class, for
// dashboards only — this label is never consulted by the frontend filter.
func (c *Collector) QueryObserved(class string) {
	c.queriesByClass.WithLabelValues(class).Inc()
}

// SavepointsActive sets the current total savepoint-stack depth.
func (c *Collector) SavepointsActive(n int) {
	c.savepointsActive.Set(float64(n))
}

// BytesToBackend records bytes written to the shared backend connection.
func (c *Collector) BytesToBackend(n int) {
	c.bytesToBackend.Add(float64(n))
}

// BytesToClient records bytes written to a client connection.
func (c *Collector) BytesToClient(n int) {
	c.bytesToClient.Add(float64(n))
}
