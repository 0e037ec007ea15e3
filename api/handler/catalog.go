package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/esimdex/catalog"
	"github.com/use-agent/esimdex/models"
)

// ListAll returns a handler for GET /api/v1/esims.
//
// Serves the cached catalog; a cold cache or force_refresh=true triggers an
// extraction pass. fetched_at in the response tells callers how stale the
// data is — under the serve-stale-on-error policy it can lag the request.
func ListAll(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		force, ok := forceRefreshParam(c)
		if !ok {
			return
		}

		snap, err := svc.ListAll(c.Request.Context(), force)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, catalogResponse(snap.Products, snap))
	}
}

// ByCountry returns a handler for GET /api/v1/esims/:country.
func ByCountry(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		country := strings.TrimSpace(c.Param("country"))
		if country == "" {
			respondError(c, models.NewCatalogError(
				models.ErrCodeInvalidInput, "country must not be empty", nil))
			return
		}

		force, ok := forceRefreshParam(c)
		if !ok {
			return
		}

		products, snap, err := svc.ListByCountry(c.Request.Context(), country, force)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, catalogResponse(products, snap))
	}
}

// Refresh returns a handler for POST /api/v1/refresh. Equivalent to
// GET /esims?force_refresh=true; concurrent refreshes share one pass.
func Refresh(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.Refresh(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, catalogResponse(snap.Products, snap))
	}
}

func catalogResponse(products []models.Product, snap *models.Snapshot) models.CatalogResponse {
	if products == nil {
		products = []models.Product{}
	}
	return models.CatalogResponse{
		Products:   products,
		TotalCount: len(products),
		FetchedAt:  snap.FetchedAt,
		SourceMode: snap.SourceMode,
	}
}

// forceRefreshParam parses ?force_refresh=. Writes a 400 and returns
// ok=false on a malformed value.
func forceRefreshParam(c *gin.Context) (force, ok bool) {
	v := c.Query("force_refresh")
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		respondError(c, models.NewCatalogError(
			models.ErrCodeInvalidInput, "force_refresh must be a boolean", err))
		return false, false
	}
	return b, true
}

// respondError maps a CatalogError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var catErr *models.CatalogError
	if !errors.As(err, &catErr) {
		catErr = models.NewCatalogError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(catErr), models.CatalogResponse{
		Products: []models.Product{},
		Error:    catErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CatalogError) int {
	switch e.Code {
	case models.ErrCodeFetchTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetchUnavailable, models.ErrCodeExtractionFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeNoCache:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
