package api

import (
	"encoding/json"
	"net/http"

	"UnraidTools/unraid-mqtt-stats/monitor"
)

// SnapshotHandler serves the latest complete snapshot. Before the first
// cycle finishes there is nothing to serve, which is a 204.
type SnapshotHandler struct {
	statsMonitor *monitor.StatsMonitor
}

func NewSnapshotHandler(statsMonitor *monitor.StatsMonitor) *SnapshotHandler {
	return &SnapshotHandler{
		statsMonitor: statsMonitor,
	}
}

func (snh *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := snh.statsMonitor.LatestSnapshot()
	if snapshot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
