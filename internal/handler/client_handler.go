package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sys/estudio-adm-api/internal/service"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
	"github.com/estudio-sys/estudio-adm-api/pkg/response"
)

// ClientHandler exposes client registry endpoints.
type ClientHandler struct {
	clients *service.ClientService
}

// NewClientHandler constructs ClientHandler.
func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param search query string false "Search by name or DNI prefix"
// @Param activity query string false "Filter by enrolled activity"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	req := service.ListClientsRequest{
		Search:    strings.TrimSpace(c.Query("search")),
		Activity:  c.Query("activity"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	clients, pagination, err := h.clients.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, pagination)
}

// Get godoc
// @Summary Get client detail
// @Tags Clients
// @Produce json
// @Param dni path int true "Client DNI"
// @Success 200 {object} response.Envelope
// @Router /clients/{dni} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	dni, err := parseDNIParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.clients.Get(c.Request.Context(), dni)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Register client
// @Tags Clients
// @Accept json
// @Produce json
// @Param payload body service.CreateClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.clients.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update client
// @Description Rewrites the client record and replaces its activity list
// @Tags Clients
// @Accept json
// @Produce json
// @Param dni path int true "Client DNI"
// @Param payload body service.UpdateClientRequest true "Client payload"
// @Success 200 {object} response.Envelope
// @Router /clients/{dni} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	dni, err := parseDNIParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.clients.Update(c.Request.Context(), dni, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete client
// @Tags Clients
// @Produce json
// @Param dni path int true "Client DNI"
// @Success 204
// @Router /clients/{dni} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	dni, err := parseDNIParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.clients.Delete(c.Request.Context(), dni); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Ledger godoc
// @Summary List enrollment ledger entries
// @Tags Clients
// @Produce json
// @Param dni query int false "Scope to one client"
// @Success 200 {object} response.Envelope
// @Router /ledger [get]
func (h *ClientHandler) Ledger(c *gin.Context) {
	entries, err := h.clients.Ledger(c.Request.Context(), queryInt64Ptr(c, "dni"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// LedgerByDNI godoc
// @Summary List one client's ledger entries
// @Tags Clients
// @Produce json
// @Param dni path int true "Client DNI"
// @Success 200 {object} response.Envelope
// @Router /ledger/{dni} [get]
func (h *ClientHandler) LedgerByDNI(c *gin.Context) {
	dni, err := parseDNIParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.clients.Ledger(c.Request.Context(), &dni)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
