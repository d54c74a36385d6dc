package handlers

import (
	"net/http"

	"github.com/Thethetrader/thethetrader-sub001/internal/config"
	"github.com/Thethetrader/thethetrader-sub001/internal/services"
)

// HandleHealth reports relay status for load balancers and monitoring.
func HandleHealth(hub *services.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := hub.Stats()

		status := "healthy"
		switch {
		case stats.ActiveConnections > config.MaxTotalConnections*9/10:
			status = "critical"
		case stats.ActiveConnections > config.MaxTotalConnections*8/10:
			status = "warning"
		}

		code := http.StatusOK
		if status == "critical" {
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]any{
			"status":             status,
			"active_connections": stats.ActiveConnections,
			"participants":       stats.Participants,
			"active_streams":     stats.ActiveStreams,
			"uptime_seconds":     stats.UptimeSeconds,
		})
	}
}
