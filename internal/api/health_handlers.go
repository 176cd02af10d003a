package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jamsync/jam-server/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(),
		"realtime": s.checkRealtime(),
	}

	overall := "healthy"
	for _, c := range components {
		switch {
		case c.Status == "unhealthy":
			overall = "unhealthy"
		case c.Status == "degraded" && overall == "healthy":
			overall = "degraded"
		}
	}

	resp := HealthResponse{Status: overall, Components: components}
	if overall == "unhealthy" {
		response.JSON(w, http.StatusServiceUnavailable, resp, s.logger)
		return
	}
	response.Success(w, resp, s.logger)
}

// checkDatabase verifies SQLite answers.
func (s *Server) checkDatabase() ComponentHealth {
	if s.services.Database == nil {
		return ComponentHealth{Status: "degraded", Message: "database not configured"}
	}

	start := time.Now()
	err := s.services.Database.Ping()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database ping failed",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkRealtime reports how many jams have a live change feed.
func (s *Server) checkRealtime() ComponentHealth {
	if s.services.Feeds == nil {
		return ComponentHealth{Status: "degraded", Message: "realtime not configured"}
	}
	return ComponentHealth{Status: "healthy", Message: formatFeedStatus(s.services.Feeds.Feeds())}
}

func formatFeedStatus(count int) string {
	switch count {
	case 0:
		return "no active jams"
	case 1:
		return "1 active jam"
	default:
		return strconv.Itoa(count) + " active jams"
	}
}
