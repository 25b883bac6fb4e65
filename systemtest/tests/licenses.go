package tests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/auth"
	"github.com/EternisAI/silo-license/internal/fingerprint"
	"github.com/EternisAI/silo-license/internal/licenseclient"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLicense(t *testing.T, router *gin.Engine, apiKey string, req dto.CreateLicenseRequest) dto.LicenseResponse {
	t.Helper()
	rr := doJSONWithKey(router, "POST", "/api/licenses", req, apiKey)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.LicenseResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func newRequest(hardwareID string, days int, features ...string) dto.CreateLicenseRequest {
	req := dto.CreateLicenseRequest{
		ProductID:    "silo",
		CustomerID:   "acme",
		Features:     append([]string{}, features...),
		DurationDays: &days,
	}
	if hardwareID != "" {
		req.HardwareID = &hardwareID
	}
	return req
}

func TestAdminAuth(t *testing.T, router *gin.Engine, apiKey string) {
	t.Run("missing key", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/licenses", newRequest("", 30))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rr := doJSONWithKey(router, "GET", "/api/licenses", nil, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("correct key", func(t *testing.T) {
		rr := doJSONWithKey(router, "GET", "/api/licenses", nil, apiKey)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("validate needs no key", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: "unknown"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"detail":"Invalid license key"}`, rr.Body.String())
	})
}

func TestLicenseLifecycle(t *testing.T, router *gin.Engine, apiKey string, jwtSecret string) {
	issuer, err := auth.NewIssuer(auth.JWTConfig{Secret: jwtSecret})
	require.NoError(t, err)

	t.Run("create and validate", func(t *testing.T) {
		created := createLicense(t, router, apiKey, newRequest("", 30, "export", "reports"))
		assert.Len(t, created.Key, 24)
		assert.Nil(t, created.HardwareID)

		rr := doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.ValidateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, []string{"export", "reports"}, resp.Features)

		claims, err := issuer.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, created.ID, claims.LicenseID)
	})

	t.Run("empty features round trip", func(t *testing.T) {
		created := createLicense(t, router, apiKey, newRequest("", 30))
		assert.NotNil(t, created.Features)
		assert.Empty(t, created.Features)

		rr := doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"features":[]`)
	})

	t.Run("expired", func(t *testing.T) {
		created := createLicense(t, router, apiKey, newRequest("A", -1))

		rr := doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"detail":"License has expired"}`, rr.Body.String())
	})

	t.Run("hardware binding", func(t *testing.T) {
		created := createLicense(t, router, apiKey, newRequest("A", 30))
		require.NotNil(t, created.HardwareID)

		other := "B"
		rr := doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key, HardwareID: &other})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"detail":"Invalid hardware ID"}`, rr.Body.String())

		same := "A"
		rr = doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key, HardwareID: &same})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("get list deactivate", func(t *testing.T) {
		created := createLicense(t, router, apiKey, newRequest("", 30))

		rr := doJSONWithKey(router, "GET", "/api/licenses/"+created.ID, nil, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSONWithKey(router, "GET", "/api/licenses", nil, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)
		var list dto.ListLicensesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.GreaterOrEqual(t, list.Count, 1)

		rr = doJSONWithKey(router, "POST", "/api/licenses/"+created.ID+"/deactivate", nil, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, "POST", "/api/validate", dto.ValidateRequest{LicenseKey: created.Key})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"detail":"License is inactive"}`, rr.Body.String())

		rr = doJSONWithKey(router, "GET", "/api/licenses/not-a-uuid", nil, apiKey)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestLicenseClient(t *testing.T, router *gin.Engine, apiKey string) {
	srv := httptest.NewServer(router)
	defer srv.Close()

	created := createLicense(t, router, apiKey, newRequest("test-hardware-id", 30, "export"))

	t.Run("gated action runs", func(t *testing.T) {
		client := licenseclient.New(created.Key, srv.URL,
			licenseclient.WithFingerprinter(fingerprint.Static("test-hardware-id")))

		ran := 0
		for i := 0; i < 3; i++ {
			require.NoError(t, client.RunGated(context.Background(), func() error {
				ran++
				return nil
			}))
		}
		assert.Equal(t, 3, ran)
		assert.Equal(t, []string{"export"}, client.Features())
		assert.NotEmpty(t, client.Token())
	})

	t.Run("wrong hardware is rejected", func(t *testing.T) {
		client := licenseclient.New(created.Key, srv.URL,
			licenseclient.WithFingerprinter(fingerprint.Static("other-machine")))

		err := client.RunGated(context.Background(), func() error {
			t.Fatal("action must not run")
			return nil
		})
		require.Error(t, err)

		var invalid *licenseclient.InvalidError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, http.StatusUnauthorized, invalid.StatusCode)
		assert.Equal(t, "Invalid hardware ID", invalid.Detail)
	})
}
