package api

import (
	"encoding/json"
	"net/http"

	"UnraidTools/unraid-mqtt-stats/monitor"
)

// SensorsHandler serves the resolved sensor registry, disabled sensors
// included.
type SensorsHandler struct {
	statsMonitor *monitor.StatsMonitor
}

func NewSensorsHandler(statsMonitor *monitor.StatsMonitor) *SensorsHandler {
	return &SensorsHandler{
		statsMonitor: statsMonitor,
	}
}

func (sh *SensorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sensors := sh.statsMonitor.Sensors()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sensors)
}
