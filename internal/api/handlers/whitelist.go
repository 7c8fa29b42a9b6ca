package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/fleetfix/internal/api/dto"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
	"github.com/pratik-mahalle/fleetfix/internal/whitelist"
)

// Catalog lists the permitted action types.
type Catalog interface {
	Entries() []whitelist.Entry
}

// WhitelistHandler exposes the action-type catalog.
type WhitelistHandler struct {
	catalog Catalog
}

func NewWhitelistHandler(catalog Catalog) *WhitelistHandler {
	return &WhitelistHandler{catalog: catalog}
}

// List handles GET /api/v1/whitelist
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.catalog.Entries()
	items := make([]dto.WhitelistEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = dto.WhitelistEntryDTO{
			ActionType:  string(e.ActionType),
			Description: e.Description,
			Command:     e.Template,
			Schema:      e.Schema,
			Defaults:    e.Defaults,
		}
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}
