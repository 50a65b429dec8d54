// Package metrics exposes the process's small Prometheus surface: gauges
// for what's loaded into the namespace/packagetype registries, useful for
// an operational dashboard even though this pipeline has no UI. Grounded
// on the metrics-registration idiom seen in the pack's kubernaut
// integration tests (prometheus.NewGaugeVec + registry.MustRegister).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoadedNamespaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_loaded_namespaces",
		Help: "Number of namespace descriptors registered at startup.",
	})
	LoadedPackageTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_loaded_packagetypes",
		Help: "Number of package type descriptors registered at startup.",
	})
)

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
