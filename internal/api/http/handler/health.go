package handler

import (
	"net/http"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}
