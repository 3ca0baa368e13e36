package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simfleet_provider_requests_total",
		Help: "Llamadas a APIs de proveedores por resultado",
	}, []string{"provider", "op", "outcome"})
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simfleet_provider_latency_seconds",
		Help:    "Latencia de las llamadas a proveedores",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"})
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simfleet_cache_hits_total",
		Help: "Aciertos de cache Redis por tipo",
	}, []string{"kind"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simfleet_cache_misses_total",
		Help: "Fallos de cache Redis por tipo",
	}, []string{"kind"})
	InventorySIMs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simfleet_inventory_sims",
		Help: "SIMs en el último inventario por proveedor",
	}, []string{"provider"})
	SIVLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simfleet_siv_lookups_total",
		Help: "Consultas SIV por resultado",
	}, []string{"outcome"})
	EnrichLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simfleet_enrich_latency_seconds",
		Help:    "Duración del enriquecimiento de dispositivos Flespi",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	LinkSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simfleet_link_send_errors_total",
		Help: "Errores enviando eventos NDJSON al proxy",
	})
)

// ObserveProvider registra una llamada terminada a un proveedor.
func ObserveProvider(provider, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(provider, op, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

func ObserveEnrichLatency(start time.Time) {
	EnrichLatency.Observe(time.Since(start).Seconds())
}

func StartMetricsServer(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	return http.ListenAndServe(":"+port, mux)
}
