package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/auth"
	"github.com/EternisAI/silo-license/internal/license"
	"github.com/EternisAI/silo-license/internal/metrics"
	"github.com/EternisAI/silo-license/internal/store/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, config Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := auth.NewIssuer(auth.JWTConfig{Secret: "router-secret"})
	require.NoError(t, err)

	engine := gin.New()
	SetupRoute(engine, config, &Services{
		Registry: license.NewRegistry(memory.NewStore(), issuer),
		Metrics:  metrics.NewRecorder(),
	})
	return engine
}

func do(r *gin.Engine, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouteAdminKey(t *testing.T) {
	r := setupRouter(t, Config{AdminAPIKey: "admin"})
	days := 30
	body := dto.CreateLicenseRequest{ProductID: "p", CustomerID: "c", Features: []string{}, DurationDays: &days}

	assert.Equal(t, http.StatusUnauthorized, do(r, "POST", "/api/licenses", body, "").Code)

	w := do(r, "POST", "/api/licenses", body, "admin")
	require.Equal(t, http.StatusOK, w.Code)

	var created dto.LicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(r, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouteOpenAdmin(t *testing.T) {
	r := setupRouter(t, Config{})

	assert.Equal(t, http.StatusOK, do(r, "GET", "/api/licenses", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/metrics", nil, "").Code)
}

func TestSetupRouteValidateRateLimit(t *testing.T) {
	r := setupRouter(t, Config{ValidateRateLimit: 0.001, ValidateRateBurst: 1})
	req := dto.ValidateRequest{LicenseKey: "unknown"}

	assert.Equal(t, http.StatusUnauthorized, do(r, "POST", "/api/validate", req, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "POST", "/api/validate", req, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/api/licenses", nil, "").Code)
}
