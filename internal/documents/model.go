package documents

import "time"

// Document is one ingested upload. Records are immutable once created; they are
// only ever removed by clear-by-owner or clear-all.
type Document struct {
	ID              string
	OwnerID         string
	FileName        string
	MimeType        string
	SizeBytes       int64
	StorageProvider string
	StorageKey      string
	// ExtractedText is nil when no extractor applied to the upload.
	ExtractedText *string
	DocumentType  string
	CreatedAt     time.Time
}

// HasExtractedText reports whether the document carries non-empty extracted text.
func (d Document) HasExtractedText() bool {
	return d.ExtractedText != nil && *d.ExtractedText != ""
}
