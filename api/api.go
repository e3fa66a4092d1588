package api

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"UnraidTools/unraid-mqtt-stats/monitor"
)

// RegisterHandlers wires the status endpoints and serves them on addr until
// the listener fails.
func RegisterHandlers(statsMonitor *monitor.StatsMonitor, addr string) error {
	mux := http.NewServeMux()

	sensorsHandler := NewSensorsHandler(statsMonitor)
	mux.Handle("/sensors", sensorsHandler)

	snapshotHandler := NewSnapshotHandler(statsMonitor)
	mux.Handle("/snapshot", snapshotHandler)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return http.ListenAndServe(addr, gzhttp.GzipHandler(mux))
}
