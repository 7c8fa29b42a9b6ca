package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pratik-mahalle/fleetfix/internal/api/dto"
	"github.com/pratik-mahalle/fleetfix/internal/api/middleware"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
	"github.com/pratik-mahalle/fleetfix/internal/services"
)

// CheckInProcessor runs one heartbeat round trip.
type CheckInProcessor interface {
	CheckIn(ctx context.Context, hostID string, results []remediation.CommandResult) (*services.CheckInResult, error)
}

// CheckInHandler serves the agent heartbeat endpoint.
type CheckInHandler struct {
	service   CheckInProcessor
	logger    *logger.Logger
	validator *validator.Validator
}

func NewCheckInHandler(service CheckInProcessor, log *logger.Logger, val *validator.Validator) *CheckInHandler {
	return &CheckInHandler{service: service, logger: log, validator: val}
}

// CheckIn handles POST /api/v1/agent/checkin. The host is identified by HostAuth;
// a host_id in the body must agree with it.
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	hostID, ok := middleware.GetHostID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing host credentials"))
		return
	}

	var req dto.CheckInRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	if req.HostID != "" && req.HostID != hostID {
		utils.WriteError(w, errors.Forbidden("host_id does not match the authenticated host"))
		return
	}

	results := make([]remediation.CommandResult, 0, len(req.CommandResults))
	for _, cr := range req.CommandResults {
		results = append(results, remediation.CommandResult{
			ActionID: cr.ActionID,
			Outcome: remediation.Outcome{
				Kind:    remediation.OutcomeKind(cr.Outcome),
				Payload: payloadOrNil(cr.Payload),
			},
		})
	}

	res, err := h.service.CheckIn(r.Context(), hostID, results)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to process check-in")
		return
	}

	resp := dto.CheckInResponse{
		PendingCommands: make([]dto.PendingCommand, 0, len(res.Commands)),
		ResultsApplied:  res.Applied,
		ResultsIgnored:  res.Ignored,
	}
	for _, cmd := range res.Commands {
		resp.PendingCommands = append(resp.PendingCommands, dto.PendingCommand{
			ActionID:   cmd.ActionID,
			ActionType: string(cmd.ActionType),
			Command:    cmd.Template,
			Rendered:   cmd.Rendered,
			Parameters: cmd.Parameters,
		})
	}

	// Hosts read the body directly, without the success envelope.
	utils.WriteJSON(w, http.StatusOK, resp)
}

// payloadOrNil drops JSON null so it is stored as an empty payload.
func payloadOrNil(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
