package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
)

const maxBodyBytes = 1 << 20

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, val *validator.Validator, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			utils.WriteError(w, errors.New("PAYLOAD_TOO_LARGE", "Request body too large", http.StatusRequestEntityTooLarge))
		case stderrors.Is(err, io.EOF):
			utils.WriteError(w, errors.BadRequest("Request body is required"))
		default:
			utils.WriteError(w, errors.BadRequest("Invalid request body"))
		}
		return false
	}

	if validationErrors := val.Validate(dst); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return false
	}
	return true
}

// writeServiceError maps a service error onto the JSON error envelope. Only
// unexpected failures are logged; domain refusals are part of normal traffic.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, msg string) {
	appErr := errors.FromDomain(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Ctx(r.Context()).ErrorWithErr(err, msg)
		appErr.Message = msg
	}
	utils.WriteError(w, appErr)
}
