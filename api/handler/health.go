package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/esimdex/catalog"
	"github.com/use-agent/esimdex/models"
)

// Health returns a handler for GET /api/v1/health.
//
// ready flips to true once any snapshot has been extracted and never flips
// back; last_fetched_at is null until then.
func Health(svc *catalog.Service, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready, last := svc.Health()

		c.JSON(http.StatusOK, models.HealthResponse{
			Ready:         ready,
			LastFetchedAt: last,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Version:       "0.1.0",
		})
	}
}
