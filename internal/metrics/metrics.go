// Package metrics wires Prometheus collectors for each long-running
// component, following the promauto style of the teacher's
// go-server/internal/metrics and go-server-3/internal/metrics packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus scrape handler for reg; every component
// mounts it on its own metrics listen address.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Broker collectors.
type Broker struct {
	FramesRelayed *prometheus.CounterVec
}

func NewBroker(reg *prometheus.Registry) *Broker {
	f := promauto.With(reg)
	return &Broker{
		FramesRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfed_broker_frames_relayed_total",
			Help: "Total number of frames relayed between clients and servers.",
		}, []string{"direction"}),
	}
}

// Proxy collectors.
type Proxy struct {
	FramesRelayed        *prometheus.CounterVec
	SubscriptionPrefixes prometheus.Gauge
}

func NewProxy(reg *prometheus.Registry) *Proxy {
	f := promauto.With(reg)
	return &Proxy{
		FramesRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfed_proxy_frames_relayed_total",
			Help: "Total number of frames relayed between publishers and subscribers.",
		}, []string{"direction"}),
		SubscriptionPrefixes: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatfed_proxy_subscription_prefixes",
			Help: "Number of distinct subscription prefixes currently registered upstream.",
		}),
	}
}

// Registry collectors.
type Registry struct {
	RegisteredServers prometheus.Gauge
	RequestLatency    *prometheus.HistogramVec
}

func NewRegistry(reg *prometheus.Registry) *Registry {
	f := promauto.With(reg)
	return &Registry{
		RegisteredServers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatfed_registry_servers",
			Help: "Number of servers ever assigned a rank.",
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatfed_registry_request_duration_seconds",
			Help:    "Registry request handling latency by service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}
}

// Server collectors.
type Server struct {
	RequestsTotal    *prometheus.CounterVec
	LogicalClock     prometheus.Gauge
	CoordinatorRank  prometheus.Gauge
	PublicationsLog  prometheus.Counter
	MessagesLog      prometheus.Counter
	ReplicaIngested  prometheus.Counter
	ElectionsEmitted prometheus.Counter
	CPUPercent       prometheus.Gauge
	RSSBytes         prometheus.Gauge
}

func NewServer(reg *prometheus.Registry, name string) *Server {
	f := promauto.With(reg)
	return &Server{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "chatfed_server_requests_total",
			Help:        "Total number of client requests handled, by service and status.",
			ConstLabels: prometheus.Labels{"server": name},
		}, []string{"service", "status"}),
		LogicalClock: f.NewGauge(prometheus.GaugeOpts{
			Name:        "chatfed_server_logical_clock",
			Help:        "Current value of this server's Lamport logical clock.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		CoordinatorRank: f.NewGauge(prometheus.GaugeOpts{
			Name:        "chatfed_server_coordinator_rank",
			Help:        "Rank of the server this instance currently believes is coordinator.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		PublicationsLog: f.NewCounter(prometheus.CounterOpts{
			Name:        "chatfed_server_publications_log_lines_total",
			Help:        "Total lines appended to publications.jsonl.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		MessagesLog: f.NewCounter(prometheus.CounterOpts{
			Name:        "chatfed_server_messages_log_lines_total",
			Help:        "Total lines appended to messages.jsonl.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		ReplicaIngested: f.NewCounter(prometheus.CounterOpts{
			Name:        "chatfed_server_replica_frames_ingested_total",
			Help:        "Total replica frames ingested from peers (origin != self).",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		ElectionsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name:        "chatfed_server_election_announcements_total",
			Help:        "Total election announcements emitted by this server.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		CPUPercent: f.NewGauge(prometheus.GaugeOpts{
			Name:        "chatfed_server_process_cpu_percent",
			Help:        "Process CPU utilization percent, sampled via gopsutil.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
		RSSBytes: f.NewGauge(prometheus.GaugeOpts{
			Name:        "chatfed_server_process_rss_bytes",
			Help:        "Process resident set size in bytes, sampled via gopsutil.",
			ConstLabels: prometheus.Labels{"server": name},
		}),
	}
}
