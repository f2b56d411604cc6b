package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var pgColumns = []string{"id", "owner_id", "filename", "mime_type", "size_bytes", "storage_provider", "storage_key", "extracted_text", "document_type", "created_at"}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateWritesNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	doc := Document{
		ID:           "doc-1",
		OwnerID:      "user-1",
		FileName:     "scan.bin",
		MimeType:     "application/octet-stream",
		SizeBytes:    4,
		DocumentType: "Unknown",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO uploaded_documents").
		WithArgs(
			doc.ID,
			doc.OwnerID,
			doc.FileName,
			doc.MimeType,
			doc.SizeBytes,
			"local",
			nil, // storage_key
			nil, // extracted_text
			doc.DocumentType,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateStoresExtractedText(t *testing.T) {
	repo, mock := newMockRepo(t)
	text := "hello"
	doc := Document{
		ID:              "doc-2",
		OwnerID:         "user-1",
		FileName:        "a.pdf",
		MimeType:        "application/pdf",
		SizeBytes:       10,
		StorageProvider: "s3",
		StorageKey:      "documents/abc/doc/a.pdf",
		ExtractedText:   &text,
		DocumentType:    "PDF",
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO uploaded_documents").
		WithArgs(doc.ID, doc.OwnerID, doc.FileName, doc.MimeType, doc.SizeBytes, "s3", doc.StorageKey, "hello", "PDF", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM uploaded_documents").
		WithArgs("user-1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "user-1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListByOwnerClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(pgColumns).
		AddRow("doc-1", "user-1", "a.txt", "text/plain", int64(3), "local", "k1", nil, "Unknown", now).
		AddRow("doc-2", "user-1", "b.pdf", "application/pdf", int64(9), "local", "k2", "text", "PDF", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT (.+) FROM uploaded_documents").
		WithArgs("user-1", 100, 0).
		WillReturnRows(rows)

	docs, err := repo.ListByOwner(context.Background(), "user-1", 500, -3)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].ExtractedText != nil {
		t.Fatalf("expected nil text for first row")
	}
	if docs[1].ExtractedText == nil || *docs[1].ExtractedText != "text" {
		t.Fatalf("unexpected text for second row: %v", docs[1].ExtractedText)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteByOwnerReturnsRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows(pgColumns).
		AddRow("doc-1", "user-1", "a.txt", "text/plain", int64(3), "local", "k1", "hi", "Unknown", time.Now().UTC())
	mock.ExpectQuery("DELETE FROM uploaded_documents WHERE owner_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	removed, err := repo.DeleteByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeleteByOwner: %v", err)
	}
	if len(removed) != 1 || removed[0].StorageKey != "k1" {
		t.Fatalf("unexpected removed rows: %+v", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteAllPropagatesError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("DELETE FROM uploaded_documents RETURNING").
		WillReturnError(errors.New("connection reset"))

	if _, err := repo.DeleteAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
