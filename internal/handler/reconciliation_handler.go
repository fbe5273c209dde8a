package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	"github.com/estudio-sys/estudio-adm-api/internal/service"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
	"github.com/estudio-sys/estudio-adm-api/pkg/response"
)

// ReconciliationHandler exposes the weekly reconciliation endpoints.
type ReconciliationHandler struct {
	reconciliation *service.ReconciliationService
	cadence        *service.CadenceService
	metrics        *service.MetricsService
}

// NewReconciliationHandler constructs ReconciliationHandler.
func NewReconciliationHandler(reconciliation *service.ReconciliationService, cadence *service.CadenceService, metrics *service.MetricsService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation, cadence: cadence, metrics: metrics}
}

// WeeklySummary godoc
// @Summary Weekly pending-verification summary
// @Description Builds the owed-day summary for the week containing the evaluation date
// @Tags Reconciliation
// @Produce json
// @Param date query string false "Evaluation date YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Router /reconciliation/weekly [get]
func (h *ReconciliationHandler) WeeklySummary(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.reconciliation.WeeklySummary(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheOperation(cacheHit, time.Since(start))
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Confirm godoc
// @Summary Confirm owed verifications
// @Description Logs automatic verifications for the selected owed days, oldest first
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param payload body service.ConfirmVerificationsRequest true "Confirmation payload"
// @Success 200 {object} response.Envelope
// @Router /reconciliation/confirm [post]
func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	var req service.ConfirmVerificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.reconciliation.ConfirmVerifications(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVerificationLogged(string(models.MethodAutomatica), result.VerificationsCreated)
	response.JSON(c, http.StatusOK, result, nil)
}

// DailyCadence godoc
// @Summary Run the daily cadence check
// @Description Evaluates consecutive-miss counters and auto-verifies clients past their threshold
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param payload body service.RunDailyCadenceRequest false "Cadence payload"
// @Success 200 {object} response.Envelope
// @Router /reconciliation/daily-cadence [post]
func (h *ReconciliationHandler) DailyCadence(c *gin.Context) {
	var req service.RunDailyCadenceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.cadence.RunDailyCadence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	created := 0
	for _, decision := range result.Decisions {
		created += decision.VerificationsCreated
	}
	h.metrics.RecordVerificationLogged(string(models.MethodAutomatica), created)
	response.JSON(c, http.StatusOK, result, nil)
}
