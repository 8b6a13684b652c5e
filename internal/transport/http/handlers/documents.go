package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/middleware"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

// DocumentHandler exposes collection reads and non-blocking writes. Writes answer 202 as soon as
// they are dispatched; denials reach the client through the notification feed, not the response.
type DocumentHandler struct {
	services *usecase.ServiceProvider
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(services *usecase.ServiceProvider) *DocumentHandler {
	return &DocumentHandler{services: services}
}

// RegisterRoutes binds the collection routes to the provided router group.
func (h *DocumentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:collection", h.List)
	r.POST("/:collection", h.Create)
	r.GET("/:collection/:id", h.Get)
	r.PUT("/:collection/:id", h.Set)
	r.PATCH("/:collection/:id", h.Update)
	r.DELETE("/:collection/:id", h.Delete)
}

// store returns a view of the document store that evaluates access as the caller.
func (h *DocumentHandler) store(c *gin.Context) (port.DocumentStore, bool) {
	deps, err := h.services.DepsFor(middleware.RequestIdentity(c))
	if err != nil {
		respondStoreError(c, err, "document store unavailable")
		return nil, false
	}
	return deps.Store, true
}

func (h *DocumentHandler) writer(c *gin.Context) (*usecase.Writer, bool) {
	writer, err := h.services.WriterFor(middleware.RequestIdentity(c))
	if err != nil {
		respondStoreError(c, err, "document store unavailable")
		return nil, false
	}
	return writer, true
}

func documentRef(c *gin.Context) (*domain.DocumentRef, bool) {
	ref := domain.Doc(c.Param("collection"), c.Param("id"))
	if err := ref.Validate(); err != nil {
		respondStoreError(c, err, "invalid document reference")
		return nil, false
	}
	return ref, true
}

func bindWrite(c *gin.Context) (WriteRequest, bool) {
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "data object is required"))
		return req, false
	}
	return req, true
}

// List godoc
// @Summary Query a collection
// @Tags Documents
// @Security BearerAuth
// @Produce json
// @Param collection path string true "Collection name"
// @Param where query []string false "field:op:value filter"
// @Param order query []string false "field[:desc] ordering"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} ListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/collections/{collection} [get]
func (h *DocumentHandler) List(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	query, err := parseQuery(c.Param("collection"), c.QueryArray("where"), c.QueryArray("order"), c.Query("limit"))
	if err != nil {
		respondStoreError(c, err, "invalid query")
		return
	}

	records, err := store.List(c.Request.Context(), query)
	if err != nil {
		respondStoreError(c, err, "failed to list documents")
		return
	}

	items := recordsToItems(records)
	c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// Get godoc
// @Summary Read one document
// @Tags Documents
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/collections/{collection}/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	ref, ok := documentRef(c)
	if !ok {
		return
	}

	record, err := store.Get(c.Request.Context(), ref)
	if err != nil {
		respondStoreError(c, err, "failed to read document")
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "document not found"))
		return
	}

	c.JSON(http.StatusOK, record.Data())
}

// Create godoc
// @Summary Add a document with a generated id
// @Tags Documents
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Document fields"
// @Success 201 {object} CreatedResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/collections/{collection} [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	writer, ok := h.writer(c)
	if !ok {
		return
	}
	req, ok := bindWrite(c)
	if !ok {
		return
	}

	pending := writer.Add(domain.Collection(c.Param("collection")), req.Data)
	ref, err := pending.Wait(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "failed to create document")
		return
	}

	c.JSON(http.StatusCreated, CreatedResponse{ID: ref.ID(), Path: ref.Path()})
}

// Set godoc
// @Summary Replace or merge a document
// @Tags Documents
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Document fields and merge flag"
// @Success 202 {object} AcceptedResponse
// @Router /api/v1/collections/{collection}/{id} [put]
func (h *DocumentHandler) Set(c *gin.Context) {
	writer, ok := h.writer(c)
	if !ok {
		return
	}
	ref, ok := documentRef(c)
	if !ok {
		return
	}
	req, ok := bindWrite(c)
	if !ok {
		return
	}

	writer.Set(ref, req.Data, req.Merge)
	c.JSON(http.StatusAccepted, AcceptedResponse{Path: ref.Path(), Operation: string(domain.OperationUpdate)})
}

// Update godoc
// @Summary Patch fields of an existing document
// @Tags Documents
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Fields to change"
// @Success 202 {object} AcceptedResponse
// @Router /api/v1/collections/{collection}/{id} [patch]
func (h *DocumentHandler) Update(c *gin.Context) {
	writer, ok := h.writer(c)
	if !ok {
		return
	}
	ref, ok := documentRef(c)
	if !ok {
		return
	}
	req, ok := bindWrite(c)
	if !ok {
		return
	}

	writer.Update(ref, req.Data)
	c.JSON(http.StatusAccepted, AcceptedResponse{Path: ref.Path(), Operation: string(domain.OperationUpdate)})
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Security BearerAuth
// @Produce json
// @Success 202 {object} AcceptedResponse
// @Router /api/v1/collections/{collection}/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	writer, ok := h.writer(c)
	if !ok {
		return
	}
	ref, ok := documentRef(c)
	if !ok {
		return
	}

	writer.Delete(ref)
	c.JSON(http.StatusAccepted, AcceptedResponse{Path: ref.Path(), Operation: string(domain.OperationDelete)})
}
