package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"

	"polisense-backend/internal/extract"
	"polisense-backend/internal/shared/metrics"
	"polisense-backend/internal/shared/storage/object"
	"polisense-backend/internal/shared/telemetry"
)

// IndexedDocument is what gets forwarded to the retrieval service.
type IndexedDocument struct {
	DocumentID   string
	Content      string
	FileName     string
	OwnerID      string
	DocumentType string
}

// Indexer is the retrieval service as seen by the ingestion pipeline.
type Indexer interface {
	AddDocument(ctx context.Context, doc IndexedDocument) error
	ClearUserDocuments(ctx context.Context, ownerID string) error
	ClearAllDocuments(ctx context.Context) error
}

// Service runs the ingestion pipeline and the clear operations.
type Service struct {
	Store           object.ObjectStore
	Repo            Repo
	Index           Indexer
	StorageProvider string
	Now             func() time.Time
}

// UploadInput is one received file plus its owner.
type UploadInput struct {
	OwnerID     string
	FileName    string
	MimeType    string
	Data        []byte
	IsEmailText bool
}

// UploadResult carries the stored document and any non-fatal warnings.
type UploadResult struct {
	Document   Document
	Extraction extract.Result
	Warnings   []string
}

// ClearResult reports how many store records were deleted. Warnings list
// best-effort steps (object removal, retrieval service notification) that failed.
type ClearResult struct {
	Deleted  int
	Warnings []string
}

// Upload clears the owner's previous documents, extracts text, stores the new
// document and forwards its text to the retrieval service.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return UploadResult{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if in.Data == nil {
		return UploadResult{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	start := time.Now()

	var warnings []string
	_, clearWarnings, err := s.clearOwner(ctx, ownerID)
	warnings = append(warnings, clearWarnings...)
	if err != nil {
		warnings = append(warnings, s.warn(ownerID, "clear previous documents", err))
		// clearOwner stopped before reaching the index.
		warnings = append(warnings, s.clearIndex(ctx, ownerID)...)
	}
	fileName := stripNUL(in.FileName)

	extraction := extract.Extract(ctx, extract.Input{
		Data:        in.Data,
		MimeType:    in.MimeType,
		FileName:    fileName,
		IsEmailText: in.IsEmailText,
	})
	if extraction.Failed {
		metrics.IncExtractionFailed(string(extraction.Kind))
		telemetry.Warn("extract.failed", map[string]any{
			"user_id":  ownerID,
			"filename": fileName,
			"kind":     string(extraction.Kind),
			"error":    errString(extraction.Err),
		})
	}

	mimeType := in.MimeType
	if in.IsEmailText {
		mimeType = extract.MimeEmailText
	}

	id := uuid.NewString()
	storageKey, size, err := s.Store.Put(ctx, object.Object{
		OwnerID:     ownerID,
		DocumentID:  id,
		FileName:    fileName,
		ContentType: mimeType,
	}, bytes.NewReader(in.Data))
	if err != nil {
		return UploadResult{}, fmt.Errorf("save raw bytes: %w", err)
	}

	doc := Document{
		ID:              id,
		OwnerID:         ownerID,
		FileName:        fileName,
		MimeType:        mimeType,
		SizeBytes:       size,
		StorageProvider: s.storageProvider(),
		StorageKey:      storageKey,
		ExtractedText:   extraction.Text,
		DocumentType:    extract.DocumentType(mimeType),
		CreatedAt:       s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Store.Delete(ctx, storageKey); delErr != nil {
			s.warn(ownerID, "remove orphaned object", delErr)
		}
		return UploadResult{}, fmt.Errorf("create document: %w", err)
	}

	if doc.HasExtractedText() && s.Index != nil {
		err := s.Index.AddDocument(ctx, IndexedDocument{
			DocumentID:   doc.ID,
			Content:      *doc.ExtractedText,
			FileName:     doc.FileName,
			OwnerID:      ownerID,
			DocumentType: doc.DocumentType,
		})
		if err != nil {
			metrics.IncRAGForwardFailed()
			warnings = append(warnings, s.warn(ownerID, "forward document to rag", err))
		}
	}

	metrics.IncUpload()
	metrics.ObserveUploadDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	telemetry.Info("document.uploaded", map[string]any{
		"user_id":        ownerID,
		"document_id":    doc.ID,
		"mime_type":      doc.MimeType,
		"document_type":  doc.DocumentType,
		"size_bytes":     doc.SizeBytes,
		"extractor":      string(extraction.Kind),
		"text_available": doc.HasExtractedText(),
		"warnings":       len(warnings),
	})

	return UploadResult{Document: doc, Extraction: extraction, Warnings: warnings}, nil
}

// ClearOwner deletes an owner's documents from the store, then asks the
// retrieval service to drop them. Only the store deletion can fail the call.
func (s *Service) ClearOwner(ctx context.Context, ownerID string) (ClearResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ClearResult{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	deleted, warnings, err := s.clearOwner(ctx, ownerID)
	if err != nil {
		return ClearResult{}, err
	}
	metrics.AddDocumentsCleared(deleted)
	return ClearResult{Deleted: deleted, Warnings: warnings}, nil
}

// ClearAll deletes every document regardless of owner.
func (s *Service) ClearAll(ctx context.Context) (ClearResult, error) {
	removed, err := s.Repo.DeleteAll(ctx)
	if err != nil {
		return ClearResult{}, fmt.Errorf("delete all documents: %w", err)
	}
	warnings := s.removeObjects(ctx, "", removed)
	if s.Index != nil {
		if err := s.Index.ClearAllDocuments(ctx); err != nil {
			warnings = append(warnings, s.warn("", "rag clear all documents", err))
		}
	}
	metrics.AddDocumentsCleared(len(removed))
	telemetry.Info("documents.cleared_all", map[string]any{
		"deleted":  len(removed),
		"warnings": len(warnings),
	})
	return ClearResult{Deleted: len(removed), Warnings: warnings}, nil
}

// Get returns one of the owner's documents.
func (s *Service) Get(ctx context.Context, ownerID, documentID string) (Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	documentID = strings.TrimSpace(documentID)
	if ownerID == "" || documentID == "" {
		return Document{}, fmt.Errorf("%w: userId and document id are required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, ownerID, documentID)
}

// OpenRaw returns the document record and a reader over its original bytes.
// Callers close the reader.
func (s *Service) OpenRaw(ctx context.Context, ownerID, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	if doc.StorageKey == "" {
		return Document{}, nil, ErrNotFound
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, fmt.Errorf("open raw bytes: %w", err)
	}
	return doc, rc, nil
}

// List returns an owner's documents newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) clearOwner(ctx context.Context, ownerID string) (int, []string, error) {
	removed, err := s.Repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, nil, fmt.Errorf("delete documents: %w", err)
	}
	warnings := s.removeObjects(ctx, ownerID, removed)
	warnings = append(warnings, s.clearIndex(ctx, ownerID)...)
	if len(removed) > 0 {
		telemetry.Info("documents.cleared", map[string]any{
			"user_id":  ownerID,
			"deleted":  len(removed),
			"warnings": len(warnings),
		})
	}
	return len(removed), warnings, nil
}

func (s *Service) clearIndex(ctx context.Context, ownerID string) []string {
	if s.Index == nil {
		return nil
	}
	if err := s.Index.ClearUserDocuments(ctx, ownerID); err != nil {
		return []string{s.warn(ownerID, "rag clear user documents", err)}
	}
	return nil
}

func (s *Service) removeObjects(ctx context.Context, ownerID string, docs []Document) []string {
	var warnings []string
	for _, doc := range docs {
		if doc.StorageKey == "" {
			continue
		}
		if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
			warnings = append(warnings, s.warn(ownerID, "delete object "+doc.ID, err))
		}
	}
	return warnings
}

// warn logs a failed best-effort step and returns it as a warning string.
func (s *Service) warn(ownerID, step string, err error) string {
	msg := step + ": " + err.Error()
	telemetry.Warn("documents.best_effort_failed", map[string]any{
		"user_id": ownerID,
		"step":    step,
		"error":   err.Error(),
	})
	return msg
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) storageProvider() string {
	if s.StorageProvider == "" {
		return "local"
	}
	return s.StorageProvider
}

// stripNUL drops 0x00, which Postgres text columns reject.
func stripNUL(v string) string {
	return strings.ReplaceAll(v, "\x00", "")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
