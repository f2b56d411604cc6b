package queries

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/rag"
	"polisense-backend/internal/shared/server/middleware"
	"polisense-backend/internal/shared/server/respond"
)

// Handler wires the query route to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the query route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/query", h.query)
}

type queryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"userId"`
}

type failedQueryResponse struct {
	rag.Answer
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request", "invalid request body", nil)
		return
	}
	ownerID, err := middleware.ResolveUserID(c, req.UserID)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid userId", err.Error(), nil)
		return
	}

	answer, err := h.Svc.Ask(c.Request.Context(), req.Question, ownerID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "Invalid request", err.Error(), nil)
			return
		}
		respond.ErrorWithBody(c, http.StatusInternalServerError, "Failed to process query", err.Error(), failedQueryResponse{
			Answer:  answer,
			Error:   "Failed to process query",
			Message: err.Error(),
		})
		return
	}

	respond.OK(c, answer)
}
