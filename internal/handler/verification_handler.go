package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sys/estudio-adm-api/internal/service"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
	"github.com/estudio-sys/estudio-adm-api/pkg/response"
)

// VerificationHandler exposes the verification log endpoints.
type VerificationHandler struct {
	verifications *service.VerificationService
	exports       *service.ExportService
	metrics       *service.MetricsService
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(verifications *service.VerificationService, exports *service.ExportService, metrics *service.MetricsService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications, exports: exports, metrics: metrics}
}

// List godoc
// @Summary List verification log entries
// @Tags Verifications
// @Produce json
// @Param dni query int false "Filter by client DNI"
// @Param activity query string false "Filter by activity"
// @Param method query string false "Filter by method (presencial or automatica)"
// @Param from query string false "From date YYYY-MM-DD"
// @Param to query string false "To date YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /verifications [get]
func (h *VerificationHandler) List(c *gin.Context) {
	req := service.ListVerificationsRequest{
		DNI:       queryInt64Ptr(c, "dni"),
		Activity:  c.Query("activity"),
		Method:    queryStringPtr(c, "method"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	entries, pagination, err := h.verifications.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// MarkPresencial godoc
// @Summary Record an in-person verification
// @Tags Verifications
// @Accept json
// @Produce json
// @Param payload body service.MarkPresencialRequest true "Verification payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications [post]
func (h *VerificationHandler) MarkPresencial(c *gin.Context) {
	var req service.MarkPresencialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.verifications.MarkPresencial(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVerificationLogged(string(entry.Method), 1)
	response.Created(c, entry)
}

// Delete godoc
// @Summary Delete a verification log entry
// @Tags Verifications
// @Produce json
// @Param id path string true "Verification ID"
// @Success 204
// @Router /verifications/{id} [delete]
func (h *VerificationHandler) Delete(c *gin.Context) {
	if err := h.verifications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the verification log
// @Description Streams a CSV or PDF extract of the verification log
// @Tags Verifications
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param dni query int false "Filter by client DNI"
// @Param activity query string false "Filter by activity"
// @Param from query string false "From date YYYY-MM-DD"
// @Param to query string false "To date YYYY-MM-DD"
// @Success 200
// @Router /verifications/export [get]
func (h *VerificationHandler) Export(c *gin.Context) {
	req := service.ExportVerificationsRequest{
		Format:   c.DefaultQuery("format", "csv"),
		DNI:      queryInt64Ptr(c, "dni"),
		Activity: c.Query("activity"),
		From:     c.Query("from"),
		To:       c.Query("to"),
	}
	result, err := h.exports.ExportVerifications(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
