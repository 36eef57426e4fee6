package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/party"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// PartyHandler handles party registry endpoints.
type PartyHandler struct {
	*BaseHandler
	service *party.Service
}

// NewPartyHandler creates a new party handler.
func NewPartyHandler(base *BaseHandler, service *party.Service) *PartyHandler {
	return &PartyHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Upsert handles POST /parties
func (h *PartyHandler) Upsert(c *gin.Context) {
	var req dto.UpsertPartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Upsert(c.Request.Context(), req.Name, req.Type); err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.Get(c.Request.Context(), req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromParty(p))
}

// List handles GET /parties
func (h *PartyHandler) List(c *gin.Context) {
	var query dto.PartyListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	items, err := h.service.List(c.Request.Context(), query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromParties(items), Count: len(items)})
}

// Get handles GET /parties/:name
func (h *PartyHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromParty(p))
}

// Rename handles PUT /parties/:name/rename
func (h *PartyHandler) Rename(c *gin.Context) {
	var req dto.RenamePartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Rename(c.Request.Context(), c.Param("name"), req.NewName); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "party renamed")
}

// Deactivate handles DELETE /parties/:name
func (h *PartyHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("name")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
