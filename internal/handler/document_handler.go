package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/internal/workflow"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DocumentHandler struct {
	documentService service.DocumentService
}

func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	docs := router.Group("/api/documents")
	docs.Use(middleware.RequireAuth())
	{
		docs.GET("", h.ListDocuments)
		docs.GET("/cartable", h.Cartable)
		docs.GET("/:id", h.GetDocument)
		docs.POST("", h.CreateDocument)
		// Transition gating is capability- and state-dependent, so it
		// happens inside the service against the loaded document; the
		// middleware only guarantees an authenticated actor.
		docs.PUT("/:id/approve", h.Approve)
		docs.PUT("/:id/reject", h.Reject)
		docs.PUT("/:id/edit", h.Edit)
		docs.PUT("/:id/void", h.RequestVoid)
		docs.DELETE("/:id", middleware.RequireCapability(model.CapDeleteDocuments), h.DeleteDocument)
	}
}

// renderWorkflowError maps the typed workflow failures onto distinct HTTP
// statuses so the UI can show the right message.
func renderWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, workflow.ErrInvalidState):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, workflow.ErrConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, "document changed while you were acting; reload and retry"))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "document not found"))
	case errors.Is(err, workflow.ErrPersistence):
		c.JSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "store unavailable, operation not applied"))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}

// ListDocuments returns documents filtered by kind/status
// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        kind    query  string  false  "Document kind"
// @Param        status  query  string  false  "Status filter"
// @Param        page    query  int     false  "Page number"
// @Param        limit   query  int     false  "Items per page"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	params := pagination.Parse(c)

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), c.GetString("userID"), service.DocumentFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		renderWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(docs, total, params.Page, params.Limit))
}

// Cartable returns documents awaiting the current user's approval stage
// @Summary      Per-role inbox
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/documents/cartable [get]
func (h *DocumentHandler) Cartable(c *gin.Context) {
	docs, err := h.documentService.Cartable(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}

// GetDocument returns one document by id
// @Summary      Get document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.documentService.GetDocument(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// CreateDocument opens a new document at the initial pending stage
// @Summary      Create document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDocumentDTO  true  "Document"
// @Success      201      {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req service.CreateDocumentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	doc, err := h.documentService.CreateDocument(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// Approve advances the document one stage along its chain
// @Summary      Approve document stage
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Document ID"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/documents/{id}/approve [put]
func (h *DocumentHandler) Approve(c *gin.Context) {
	h.transition(c, service.OpApprove, service.TransitionInput{})
}

// Reject moves the document to the rejected terminal state
// @Summary      Reject document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true   "Document ID"
// @Param        payload  body  service.TransitionInput false  "Rejection reason"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/documents/{id}/reject [put]
func (h *DocumentHandler) Reject(c *gin.Context) {
	var input service.TransitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		// Allow empty body — reason is optional
		input = service.TransitionInput{}
	}
	h.transition(c, service.OpReject, input)
}

// Edit replaces the payload and restarts the approval chain
// @Summary      Edit document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Document ID"
// @Param        payload  body  service.TransitionInput true  "New payload"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/documents/{id}/edit [put]
func (h *DocumentHandler) Edit(c *gin.Context) {
	var input service.TransitionInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Payload == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "payload is required for edit"))
		return
	}
	h.transition(c, service.OpEdit, input)
}

// RequestVoid opens the cancellation chain on a rejected document
// @Summary      Request void
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Document ID"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/documents/{id}/void [put]
func (h *DocumentHandler) RequestVoid(c *gin.Context) {
	h.transition(c, service.OpRequestVoid, service.TransitionInput{})
}

func (h *DocumentHandler) transition(c *gin.Context, op service.TransitionOp, input service.TransitionInput) {
	result, err := h.documentService.ApplyTransition(c.Request.Context(), c.Param("id"), op, c.GetString("userID"), input)
	if err != nil {
		renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteDocument removes a document (administrative capability)
// @Summary      Delete document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Document ID"
// @Success      200  {object}  response.Response
// @Router       /api/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	if err := h.documentService.DeleteDocument(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Document deleted successfully"))
}
