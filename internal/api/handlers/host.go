package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/fleetfix/internal/api/dto"
	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
)

// HostHandler serves the host registry.
type HostHandler struct {
	service   host.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewHostHandler(service host.Service, log *logger.Logger, val *validator.Validator) *HostHandler {
	return &HostHandler{service: service, logger: log, validator: val}
}

// Register handles POST /api/v1/hosts
func (h *HostHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterHostRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	registered, err := h.service.Register(r.Context(), req.ID, req.Name, req.Secret)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to register host")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, toHostDTO(registered))
}

// List handles GET /api/v1/hosts
func (h *HostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePageParams(r)
	if err != nil {
		utils.WriteError(w, errors.BadRequest(err.Error()))
		return
	}

	hosts, total, err := h.service.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list hosts")
		return
	}

	items := make([]dto.HostDTO, len(hosts))
	for i, hst := range hosts {
		items[i] = toHostDTO(hst)
	}
	utils.WriteSuccess(w, http.StatusOK, utils.PageResponse{
		Items:  items,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get handles GET /api/v1/hosts/{id}
func (h *HostHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to get host")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, toHostDTO(found))
}

// SetMaintenance handles PUT /api/v1/hosts/{id}/maintenance
func (h *HostHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req dto.MaintenanceRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	updated, err := h.service.SetMaintenance(r.Context(), chi.URLParam(r, "id"), *req.Paused)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update maintenance mode")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, toHostDTO(updated))
}

func toHostDTO(h *host.Host) dto.HostDTO {
	return dto.HostDTO{
		ID:            h.ID,
		Name:          h.Name,
		IsPaused:      h.IsPaused,
		LastCheckInAt: h.LastCheckInAt,
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	}
}
