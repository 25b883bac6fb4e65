package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/license"
	"github.com/EternisAI/silo-license/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Client-facing reasons for a refused validation.
var rejectionDetails = map[error]string{
	license.ErrNotFound:         "Invalid license key",
	license.ErrInactive:         "License is inactive",
	license.ErrExpired:          "License has expired",
	license.ErrHardwareMismatch: "Invalid hardware ID",
}

var rejectionResults = map[error]string{
	license.ErrNotFound:         metrics.ResultNotFound,
	license.ErrInactive:         metrics.ResultInactive,
	license.ErrExpired:          metrics.ResultExpired,
	license.ErrHardwareMismatch: metrics.ResultHardwareMismatch,
}

type LicenseHandler struct {
	registry *license.Registry
	metrics  *metrics.Recorder
}

func NewLicenseHandler(registry *license.Registry, recorder *metrics.Recorder) *LicenseHandler {
	return &LicenseHandler{
		registry: registry,
		metrics:  recorder,
	}
}

func (h *LicenseHandler) CreateLicense(ctx *gin.Context) {
	var req dto.CreateLicenseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: bindingDetail(err)})
		return
	}

	params := license.CreateParams{
		ProductID:    req.ProductID,
		CustomerID:   req.CustomerID,
		Features:     req.Features,
		DurationDays: *req.DurationDays,
	}
	if req.HardwareID != nil {
		params.HardwareID = *req.HardwareID
	}

	l, err := h.registry.Create(ctx.Request.Context(), params)
	if errors.Is(err, license.ErrInvalidDuration) {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: "duration_days is out of range"})
		return
	}
	if err != nil {
		slog.Error("Failed to create license", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: "Failed to create license"})
		return
	}

	if h.metrics != nil {
		h.metrics.LicenseCreated()
	}
	ctx.JSON(http.StatusOK, toLicenseResponse(l, time.Now()))
}

func (h *LicenseHandler) Validate(ctx *gin.Context) {
	var req dto.ValidateBinding
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: bindingDetail(err)})
		return
	}

	hardwareID := ""
	if req.HardwareID != nil {
		hardwareID = *req.HardwareID
	}

	result, err := h.registry.Validate(ctx.Request.Context(), *req.LicenseKey, hardwareID)
	if err != nil {
		for reason, detail := range rejectionDetails {
			if errors.Is(err, reason) {
				slog.Info("License validation rejected", "reason", reason, "client_ip", ctx.ClientIP())
				h.record(rejectionResults[reason])
				ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: detail})
				return
			}
		}
		slog.Error("Failed to validate license", "error", err)
		h.record(metrics.ResultError)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: "internal error"})
		return
	}

	h.record(metrics.ResultValid)
	ctx.JSON(http.StatusOK, dto.ValidateResponse{
		Valid:    result.Valid,
		Token:    result.Token,
		Features: result.Features,
	})
}

func (h *LicenseHandler) ListLicenses(ctx *gin.Context) {
	licenses, err := h.registry.List(ctx.Request.Context())
	if err != nil {
		slog.Error("Failed to list licenses", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: "internal error"})
		return
	}

	now := time.Now()
	items := make([]dto.LicenseResponse, len(licenses))
	for i := range licenses {
		items[i] = toLicenseResponse(&licenses[i], now)
	}

	ctx.JSON(http.StatusOK, dto.ListLicensesResponse{
		Licenses: items,
		Count:    len(items),
	})
}

func (h *LicenseHandler) GetLicense(ctx *gin.Context) {
	l, err := h.registry.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeLookupError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toLicenseResponse(l, time.Now()))
}

func (h *LicenseHandler) DeactivateLicense(ctx *gin.Context) {
	l, err := h.registry.Deactivate(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeLookupError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toLicenseResponse(l, time.Now()))
}

func (h *LicenseHandler) writeLookupError(ctx *gin.Context, err error) {
	if errors.Is(err, license.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Detail: "License not found"})
		return
	}
	slog.Error("Failed to load license", "license_id", ctx.Param("id"), "error", err)
	ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: "internal error"})
}

func (h *LicenseHandler) record(result string) {
	if h.metrics != nil {
		h.metrics.Validation(result)
	}
}

func toLicenseResponse(l *license.License, now time.Time) dto.LicenseResponse {
	resp := dto.LicenseResponse{
		ID:         l.ID,
		Key:        l.Key,
		ProductID:  l.ProductID,
		CustomerID: l.CustomerID,
		IssuedAt:   l.IssuedAt,
		ExpiresAt:  l.ExpiresAt,
		Features:   l.Features,
		Active:     l.Active,
		Status:     l.Status(now),
	}
	if l.Bound() {
		hw := l.HardwareID
		resp.HardwareID = &hw
	}
	return resp
}
