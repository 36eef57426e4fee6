package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/cache"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// MovementHandler handles movement ledger endpoints. List and summary
// reads go through the query cache keyed on the movements version.
type MovementHandler struct {
	*BaseHandler
	service    *ledger.Service
	queryCache *cache.QueryCache
	versions   *postgres.VersionStore
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(
	base *BaseHandler,
	service *ledger.Service,
	queryCache *cache.QueryCache,
	versions *postgres.VersionStore,
) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		service:     service,
		queryCache:  queryCache,
		versions:    versions,
	}
}

// Record handles POST /movements
func (h *MovementHandler) Record(c *gin.Context) {
	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := h.service.Record(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromMovement(m))
}

// UpsertInitialStock handles PUT /movements/initial-stock
func (h *MovementHandler) UpsertInitialStock(c *gin.Context) {
	var req dto.InitialStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.service.UpsertInitialStock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMovement(m))
}

// List handles GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.MovementListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	key, cached := h.cacheKey(c, "list",
		query.ProductName,
		query.Kind,
		fmt.Sprintf("days=%d", query.Days),
		fmt.Sprintf("limit=%d", query.Limit),
		fmt.Sprintf("offset=%d", query.Offset),
	)
	if cached {
		if value, ok := h.queryCache.Get(key); ok {
			h.OK(c, value)
			return
		}
	}

	items, err := h.service.List(ctx, query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.ListResponse{Items: dto.FromMovements(items), Count: len(items)}
	if cached {
		h.queryCache.Set(key, postgres.FamilyMovements, response)
	}
	h.OK(c, response)
}

// Get handles GET /movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid movement id"))
		return
	}

	m, err := h.service.Get(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMovement(m))
}

// Delete handles DELETE /movements/:id
func (h *MovementHandler) Delete(c *gin.Context) {
	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid movement id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Summary handles GET /movements/summary
func (h *MovementHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	days := h.ParseIntQuery(c, "days", 0)

	key, cached := h.cacheKey(c, "summary", fmt.Sprintf("days=%d", days))
	if cached {
		if value, ok := h.queryCache.Get(key); ok {
			h.OK(c, value)
			return
		}
	}

	totals, err := h.service.Summary(ctx, days)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.SummaryResponse{Days: days, Totals: totals}
	if cached {
		h.queryCache.Set(key, postgres.FamilyMovements, response)
	}
	h.OK(c, response)
}

// cacheKey builds a movement cache key from the current movements
// version. A failed version read just bypasses the cache.
func (h *MovementHandler) cacheKey(c *gin.Context, op string, params ...string) (string, bool) {
	if h.queryCache == nil || h.versions == nil {
		return "", false
	}

	ctx := c.Request.Context()
	version, err := h.versions.Current(ctx, postgres.FamilyMovements)
	if err != nil {
		logger.Warn(ctx, "movements version read failed, bypassing cache", "error", err)
		return "", false
	}

	keyParams := append([]string{op}, params...)
	return cache.Key(ctx, postgres.FamilyMovements, version, keyParams...), true
}
