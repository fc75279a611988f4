// Package netmetrics exposes Prometheus collectors for the router and
// transport layers, grounded in the runZeroInc-conniver/
// runZeroInc-sockstats exporter (pkg/exporter), which wraps per-socket
// counters as prometheus.Metric values behind a custom Collector.
// Here the counters come from RouterNetwork's atomic stats and
// ReliableTransport's connection table rather than a real socket's
// TCP_INFO, but the collector shape is the same.
package netmetrics

import "github.com/prometheus/client_golang/prometheus"

// RouterStatsSource is anything that can report a router's current
// stats snapshot. network.RouterNetwork satisfies this.
type RouterStatsSource interface {
	Forwarded() uint64
	DroppedTTL() uint64
	DroppedUnknown() uint64
}

// RouterCollector adapts a RouterStatsSource to prometheus.Collector.
type RouterCollector struct {
	source   RouterStatsSource
	routerID string

	forwarded      *prometheus.Desc
	droppedTTL     *prometheus.Desc
	droppedUnknown *prometheus.Desc
	total          *prometheus.Desc
}

// NewRouterCollector builds a collector labelled with the router's VIP.
func NewRouterCollector(routerID string, source RouterStatsSource) *RouterCollector {
	labels := []string{"router"}
	return &RouterCollector{
		source:   source,
		routerID: routerID,
		forwarded: prometheus.NewDesc(
			"netstack_router_forwarded_total", "Packets forwarded by this router.", labels, nil),
		droppedTTL: prometheus.NewDesc(
			"netstack_router_dropped_ttl_total", "Packets dropped for TTL expiry.", labels, nil),
		droppedUnknown: prometheus.NewDesc(
			"netstack_router_dropped_unknown_total", "Packets dropped for unknown destination.", labels, nil),
		total: prometheus.NewDesc(
			"netstack_router_packets_total", "Total packets observed by this router.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *RouterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.forwarded
	ch <- c.droppedTTL
	ch <- c.droppedUnknown
	ch <- c.total
}

// Collect implements prometheus.Collector.
func (c *RouterCollector) Collect(ch chan<- prometheus.Metric) {
	forwarded := c.source.Forwarded()
	droppedTTL := c.source.DroppedTTL()
	droppedUnknown := c.source.DroppedUnknown()

	ch <- prometheus.MustNewConstMetric(c.forwarded, prometheus.CounterValue, float64(forwarded), c.routerID)
	ch <- prometheus.MustNewConstMetric(c.droppedTTL, prometheus.CounterValue, float64(droppedTTL), c.routerID)
	ch <- prometheus.MustNewConstMetric(c.droppedUnknown, prometheus.CounterValue, float64(droppedUnknown), c.routerID)
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(forwarded+droppedTTL+droppedUnknown), c.routerID)
}

// TransportGauges tracks per-transport-instance connection counts and
// retransmission activity. Unlike RouterCollector this is updated
// directly by the transport (push style) rather than scraped (pull
// style), since connection count changes on every connect/accept/close
// rather than at scrape time.
type TransportGauges struct {
	connections     prometheus.Gauge
	retransmissions prometheus.Counter
}

// NewTransportGauges builds and registers gauges labelled with the
// owning transport's local address.
func NewTransportGauges(reg prometheus.Registerer, localAddr string) *TransportGauges {
	g := &TransportGauges{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "netstack_transport_connections",
			Help:        "Live connections currently registered on this transport.",
			ConstLabels: prometheus.Labels{"local": localAddr},
		}),
		retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "netstack_transport_retransmissions_total",
			Help:        "Data and FIN segments retransmitted after a timeout.",
			ConstLabels: prometheus.Labels{"local": localAddr},
		}),
	}
	if reg != nil {
		reg.MustRegister(g.connections, g.retransmissions)
	}
	return g
}

// ConnectionOpened increments the live connection gauge.
func (g *TransportGauges) ConnectionOpened() { g.connections.Inc() }

// ConnectionClosed decrements the live connection gauge.
func (g *TransportGauges) ConnectionClosed() { g.connections.Dec() }

// Retransmitted increments the retransmission counter.
func (g *TransportGauges) Retransmitted() { g.retransmissions.Inc() }
