package tests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithKey(router, method, path, body, "")
}

func doJSONWithKey(router *gin.Engine, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
