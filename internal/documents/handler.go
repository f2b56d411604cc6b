package documents

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/extract"
	"polisense-backend/internal/shared/server/middleware"
	"polisense-backend/internal/shared/server/respond"
)

const defaultMaxUploadBytes = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches the per-owner document routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.DELETE("/clear-all-documents", h.clearOwner)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/raw", h.download)
}

// RegisterAdminRoutes attaches the global clear. Callers guard the group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/clear-all-documents", h.clearAll)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respond.Error(c, http.StatusRequestEntityTooLarge, "File too large", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "No file uploaded", "file is required", nil)
		return
	}

	ownerID, ok := requireOwner(c, c.PostForm("userId"))
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "No file uploaded", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "No file uploaded", "unable to read file", nil)
		return
	}
	if data == nil {
		data = []byte{}
	}

	res, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		OwnerID:     ownerID,
		FileName:    fileHeader.Filename,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Data:        data,
		IsEmailText: strings.EqualFold(strings.TrimSpace(c.PostForm("isEmailText")), "true"),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "Invalid request", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to upload file", err.Error(), nil)
		}
		return
	}

	c.Set("documentId", res.Document.ID)
	respond.OK(c, toUploadResponse(res))
}

func (h *Handler) clearOwner(c *gin.Context) {
	var req clearRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "Invalid request", "invalid request body", nil)
			return
		}
	}

	ownerID, ok := requireOwner(c, req.UserID)
	if !ok {
		return
	}

	res, err := h.Svc.ClearOwner(c.Request.Context(), ownerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "Invalid request", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to clear documents", err.Error(), nil)
		}
		return
	}

	respond.OK(c, clearResponse{
		Message:          "All documents cleared for user",
		DocumentsDeleted: res.Deleted,
		Warnings:         res.Warnings,
	})
}

func (h *Handler) clearAll(c *gin.Context) {
	res, err := h.Svc.ClearAll(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to clear documents", err.Error(), nil)
		return
	}
	respond.OK(c, clearResponse{
		Message:          "All documents cleared",
		DocumentsDeleted: res.Deleted,
		Warnings:         res.Warnings,
	})
}

func (h *Handler) list(c *gin.Context) {
	ownerID, ok := requireOwner(c, c.Query("userId"))
	if !ok {
		return
	}

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "Invalid request", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to list documents", err.Error(), nil)
		}
		return
	}

	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	respond.OK(c, listResponse{Items: items, Limit: limit, Offset: offset})
}

func (h *Handler) get(c *gin.Context) {
	ownerID, ok := requireOwner(c, c.Query("userId"))
	if !ok {
		return
	}
	c.Set("documentId", c.Param("id"))

	doc, err := h.Svc.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		writeReadError(c, err)
		return
	}
	respond.OK(c, toDocumentResponse(doc))
}

func (h *Handler) download(c *gin.Context) {
	ownerID, ok := requireOwner(c, c.Query("userId"))
	if !ok {
		return
	}
	c.Set("documentId", c.Param("id"))

	doc, rc, err := h.Svc.OpenRaw(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		writeReadError(c, err)
		return
	}
	defer rc.Close()

	contentType := doc.MimeType
	if contentType == "" || contentType == extract.MimeEmailText {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, rc, nil)
}

// requireOwner resolves the owner id or writes a 400.
func requireOwner(c *gin.Context, explicit string) (string, bool) {
	ownerID, err := middleware.ResolveUserID(c, explicit)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid userId", err.Error(), nil)
		return "", false
	}
	if ownerID == "" {
		respond.Error(c, http.StatusBadRequest, "Missing userId", "userId is required", nil)
		return "", false
	}
	return ownerID, true
}

func writeReadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "Invalid request", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Document not found", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "Failed to read document", err.Error(), nil)
	}
}
