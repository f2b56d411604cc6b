package documents

import "time"

const (
	parsedTextAvailable    = "Available"
	parsedTextNotAvailable = "Not available"
)

type uploadedFileResponse struct {
	ID         string `json:"id"`
	FileName   string `json:"filename"`
	MimeType   string `json:"mimetype"`
	Size       int64  `json:"size"`
	ParsedText string `json:"parsedText"`
}

type uploadResponse struct {
	Message  string               `json:"message"`
	File     uploadedFileResponse `json:"file"`
	Warnings []string             `json:"warnings,omitempty"`
}

type clearRequest struct {
	UserID string `json:"userId"`
}

type clearResponse struct {
	Message          string   `json:"message"`
	DocumentsDeleted int      `json:"documentsDeleted"`
	Warnings         []string `json:"warnings,omitempty"`
}

type documentResponse struct {
	ID           string    `json:"id"`
	FileName     string    `json:"filename"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	DocumentType string    `json:"documentType"`
	ParsedText   string    `json:"parsedText"`
	CreatedAt    time.Time `json:"createdAt"`
}

type listResponse struct {
	Items  []documentResponse `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func parsedTextStatus(doc Document) string {
	if doc.HasExtractedText() {
		return parsedTextAvailable
	}
	return parsedTextNotAvailable
}

func toUploadResponse(res UploadResult) uploadResponse {
	return uploadResponse{
		Message: "File uploaded successfully",
		File: uploadedFileResponse{
			ID:         res.Document.ID,
			FileName:   res.Document.FileName,
			MimeType:   res.Document.MimeType,
			Size:       res.Document.SizeBytes,
			ParsedText: parsedTextStatus(res.Document),
		},
		Warnings: res.Warnings,
	}
}

func toDocumentResponse(doc Document) documentResponse {
	return documentResponse{
		ID:           doc.ID,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		Size:         doc.SizeBytes,
		DocumentType: doc.DocumentType,
		ParsedText:   parsedTextStatus(doc),
		CreatedAt:    doc.CreatedAt,
	}
}
