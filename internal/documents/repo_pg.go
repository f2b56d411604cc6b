package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, filename, mime_type, size_bytes, storage_provider, storage_key, extracted_text, document_type, created_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO uploaded_documents (
    id,
    owner_id,
    filename,
    mime_type,
    size_bytes,
    storage_provider,
    storage_key,
    extracted_text,
    document_type,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	var storageKey sql.NullString
	if doc.StorageKey != "" {
		storageKey = sql.NullString{String: doc.StorageKey, Valid: true}
	}
	var extracted sql.NullString
	if doc.ExtractedText != nil {
		extracted = sql.NullString{String: *doc.ExtractedText, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		storageProvider,
		storageKey,
		extracted,
		doc.DocumentType,
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID for an owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM uploaded_documents
WHERE owner_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, ownerID, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByOwner lists documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + documentColumns + `
FROM uploaded_documents
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// DeleteByOwner removes an owner's documents and returns the removed rows.
func (r *PGRepo) DeleteByOwner(ctx context.Context, ownerID string) ([]Document, error) {
	query := `DELETE FROM uploaded_documents WHERE owner_id = $1 RETURNING ` + documentColumns
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// DeleteAll removes every document and returns the removed rows.
func (r *PGRepo) DeleteAll(ctx context.Context) ([]Document, error) {
	query := `DELETE FROM uploaded_documents RETURNING ` + documentColumns
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var storageProvider sql.NullString
	var storageKey sql.NullString
	var extracted sql.NullString
	var documentType sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&storageProvider,
		&storageKey,
		&extracted,
		&documentType,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	if storageProvider.Valid {
		doc.StorageProvider = storageProvider.String
	}
	if storageKey.Valid {
		doc.StorageKey = storageKey.String
	}
	if extracted.Valid {
		text := extracted.String
		doc.ExtractedText = &text
	}
	if documentType.Valid {
		doc.DocumentType = documentType.String
	}
	return doc, nil
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
