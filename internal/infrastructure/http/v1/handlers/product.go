package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/product"
	"stockledger/internal/infrastructure/cache"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// ProductHandler handles product registry endpoints. List reads go
// through the query cache keyed on the products version counter.
type ProductHandler struct {
	*BaseHandler
	service    *product.Service
	ledger     *ledger.Service
	queryCache *cache.QueryCache
	versions   *postgres.VersionStore
}

// NewProductHandler creates a new product handler.
func NewProductHandler(
	base *BaseHandler,
	service *product.Service,
	ledgerService *ledger.Service,
	queryCache *cache.QueryCache,
	versions *postgres.VersionStore,
) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		service:     service,
		ledger:      ledgerService,
		queryCache:  queryCache,
		versions:    versions,
	}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromProduct(created))
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.ProductListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	key, cached := h.cacheKey(c, query)
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

	response := dto.ListResponse{Items: dto.FromProducts(items), Count: len(items)}
	if cached {
		h.queryCache.Set(key, postgres.FamilyProducts, response)
	}
	h.OK(c, response)
}

// cacheKey builds the list cache key from the current products version.
// A failed version read just bypasses the cache.
func (h *ProductHandler) cacheKey(c *gin.Context, query dto.ProductListQuery) (string, bool) {
	if h.queryCache == nil || h.versions == nil {
		return "", false
	}

	ctx := c.Request.Context()
	version, err := h.versions.Current(ctx, postgres.FamilyProducts)
	if err != nil {
		logger.Warn(ctx, "products version read failed, bypassing cache", "error", err)
		return "", false
	}

	key := cache.Key(ctx, postgres.FamilyProducts, version,
		query.Category,
		query.Search,
		fmt.Sprintf("inactive=%t", query.IncludeInactive),
		fmt.Sprintf("limit=%d", query.Limit),
		fmt.Sprintf("offset=%d", query.Offset),
	)
	return key, true
}

// Get handles GET /products/:name
func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// Update handles PUT /products/:name
func (h *ProductHandler) Update(c *gin.Context) {
	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("name"), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(updated))
}

// Delete handles DELETE /products/:name
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore handles POST /products/:name/restore
func (h *ProductHandler) Restore(c *gin.Context) {
	if err := h.service.Restore(c.Request.Context(), c.Param("name")); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "product restored")
}

// LatestPurchaseParty handles GET /products/:name/latest-purchase-party
func (h *ProductHandler) LatestPurchaseParty(c *gin.Context) {
	name := c.Param("name")

	party, err := h.ledger.LatestPurchaseParty(c.Request.Context(), name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LatestPartyResponse{ProductName: name, Party: party})
}
