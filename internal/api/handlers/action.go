package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/fleetfix/internal/api/dto"
	"github.com/pratik-mahalle/fleetfix/internal/api/middleware"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
)

// ActionHandler serves the remediation management API.
type ActionHandler struct {
	service   remediation.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewActionHandler(service remediation.Service, log *logger.Logger, val *validator.Validator) *ActionHandler {
	return &ActionHandler{service: service, logger: log, validator: val}
}

// Create handles POST /api/v1/actions
func (h *ActionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateActionRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	origin := &remediation.Origin{Kind: remediation.OriginUser, Ref: middleware.GetActor(r)}
	if req.Origin != nil {
		origin = &remediation.Origin{Kind: remediation.OriginKind(req.Origin.Kind), Ref: req.Origin.Ref}
	}

	action, err := h.service.Create(r.Context(), remediation.CreateRequest{
		HostID:          req.HostID,
		ActionType:      remediation.ActionType(req.ActionType),
		Parameters:      req.Parameters,
		Origin:          origin,
		NotifyOnSuccess: req.NotifyOnSuccess,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create remediation action")
		return
	}

	middleware.AddLogField(w, "action_id", action.ID)
	utils.WriteSuccess(w, http.StatusCreated, toActionDTO(action))
}

// List handles GET /api/v1/actions?host_id=&status=&action_type=&limit=&offset=
func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePageParams(r)
	if err != nil {
		utils.WriteError(w, errors.BadRequest(err.Error()))
		return
	}

	q := r.URL.Query()
	filter := remediation.Filter{
		HostID:     q.Get("host_id"),
		Status:     remediation.ActionStatus(strings.ToUpper(q.Get("status"))),
		ActionType: remediation.ActionType(q.Get("action_type")),
	}

	actions, total, err := h.service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list remediation actions")
		return
	}

	items := make([]dto.ActionDTO, len(actions))
	for i, a := range actions {
		items[i] = toActionDTO(a)
	}
	utils.WriteSuccess(w, http.StatusOK, utils.PageResponse{
		Items:  items,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get handles GET /api/v1/actions/{id}
func (h *ActionHandler) Get(w http.ResponseWriter, r *http.Request) {
	action, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to get remediation action")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, toActionDTO(action))
}

// Approve handles POST /api/v1/actions/{id}/approve
func (h *ActionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	action, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to approve remediation action")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Action approved", toActionDTO(action))
}

// Reject handles POST /api/v1/actions/{id}/reject. The body is optional.
func (h *ActionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req dto.RejectActionRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}
	}

	action, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), middleware.GetActor(r), strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to reject remediation action")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Action rejected", toActionDTO(action))
}

// Audit handles GET /api/v1/actions/{id}/audit
func (h *ActionHandler) Audit(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to load audit history")
		return
	}

	items := make([]dto.AuditRecordDTO, len(records))
	for i, rec := range records {
		items[i] = dto.AuditRecordDTO{
			Seq:        rec.Seq,
			FromStatus: string(rec.FromStatus),
			ToStatus:   string(rec.ToStatus),
			Actor:      rec.Actor,
			Note:       rec.Note,
			Timestamp:  rec.Timestamp,
		}
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// Summary handles GET /api/v1/actions/summary?host_id=
func (h *ActionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get("host_id")
	counts, err := h.service.Summary(r.Context(), hostID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to summarize remediation actions")
		return
	}

	summary := dto.SummaryDTO{HostID: hostID, Counts: make(map[string]int64, len(remediation.AllStatuses))}
	for _, status := range remediation.AllStatuses {
		summary.Counts[string(status)] = counts[status]
		summary.Total += counts[status]
	}
	utils.WriteSuccess(w, http.StatusOK, summary)
}

func toActionDTO(a *remediation.Action) dto.ActionDTO {
	out := dto.ActionDTO{
		ID:              a.ID,
		HostID:          a.HostID,
		ActionType:      string(a.ActionType),
		Parameters:      a.Parameters,
		Status:          string(a.Status),
		NotifyOnSuccess: a.NotifyOnSuccess,
		ApprovedBy:      a.ApprovedBy,
		RejectionReason: a.RejectionReason,
		Result:          a.Result,
		Error:           a.Error,
		FailureKind:     string(a.FailureKind),
		CreatedAt:       a.CreatedAt,
		ApprovedAt:      a.ApprovedAt,
		DispatchedAt:    a.DispatchedAt,
		CompletedAt:     a.CompletedAt,
		RejectedAt:      a.RejectedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if out.Parameters == nil {
		out.Parameters = map[string]interface{}{}
	}
	if a.Origin != nil {
		out.Origin = &dto.OriginDTO{Kind: string(a.Origin.Kind), Ref: a.Origin.Ref}
	}
	return out
}
