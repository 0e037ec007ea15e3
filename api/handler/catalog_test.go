package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/esimdex/models"
)

func TestRespondError_UnwrapsWrappedCatalogErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	inner := models.NewCatalogError(models.ErrCodeNoCache, "no snapshot yet", nil)
	respondError(c, fmt.Errorf("refresh pass: %w", inner))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp models.CatalogResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeNoCache {
		t.Errorf("error detail = %+v, want code %s", resp.Error, models.ErrCodeNoCache)
	}
}

func TestRespondError_PlainErrorsBecomeInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, fmt.Errorf("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var resp models.CatalogResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInternal {
		t.Errorf("error detail = %+v, want code %s", resp.Error, models.ErrCodeInternal)
	}
}
