// Package extract turns uploaded bytes into the plain text forwarded to the RAG service.
//
// Extraction never fails past this package: a broken document yields a sentinel
// string (for example "PDF parsing failed") and Result.Failed, so one bad upload
// cannot abort the request that carried it.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	MimePlainText = "text/plain"
	MimePDF       = "application/pdf"
	MimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeRFC822    = "message/rfc822"
	// MimeEmailText marks a pasted email body uploaded as plain text.
	MimeEmailText = "text/email"
)

// Sentinel texts stored in place of extracted text when an extractor fails.
const (
	FailedPDF  = "PDF parsing failed"
	FailedDOCX = "DOCX parsing failed"
	FailedEML  = "EML parsing failed"
)

// Kind is the extractor chosen for a payload.
type Kind string

const (
	KindNone      Kind = ""
	KindEmailText Kind = "email-text"
	KindDOCX      Kind = "docx"
	KindEML       Kind = "eml"
	KindPDF       Kind = "pdf"
)

// Input describes one uploaded file.
type Input struct {
	Data        []byte
	MimeType    string
	FileName    string
	IsEmailText bool
}

// Result is the outcome of extracting one Input.
// Text is nil when no extractor applies to the payload.
type Result struct {
	Kind   Kind
	Text   *string
	Failed bool
	Err    error
}

// Available reports whether there is non-empty text worth forwarding.
func (r Result) Available() bool {
	return r.Text != nil && *r.Text != ""
}

// Classify picks the extractor for in. First match wins:
// pasted email text, DOCX, EML (mime or .eml name), PDF.
func Classify(in Input) Kind {
	mime := normalizeMimeType(in.MimeType)
	switch {
	case in.IsEmailText && mime == MimePlainText:
		return KindEmailText
	case mime == MimeDOCX:
		return KindDOCX
	case mime == MimeRFC822 || strings.EqualFold(filepath.Ext(in.FileName), ".eml"):
		return KindEML
	case mime == MimePDF:
		return KindPDF
	default:
		return KindNone
	}
}

// Extract runs the extractor chosen by Classify.
func Extract(ctx context.Context, in Input) Result {
	kind := Classify(in)
	if err := ctx.Err(); err != nil {
		return Result{Kind: kind, Err: err}
	}

	var (
		text string
		err  error
	)
	switch kind {
	case KindEmailText:
		text = emailText(in.Data)
	case KindDOCX:
		text, err = guarded(FailedDOCX, func() (string, error) { return extractDOCX(in.Data) })
	case KindEML:
		text, err = guarded(FailedEML, func() (string, error) { return extractEML(in.Data) })
	case KindPDF:
		text, err = guarded(FailedPDF, func() (string, error) { return extractPDF(in.Data) })
	default:
		return Result{Kind: KindNone}
	}

	text = strings.ReplaceAll(text, "\x00", "")
	return Result{Kind: kind, Text: &text, Failed: err != nil, Err: err}
}

// guarded runs fn, converting errors and panics from third-party parsers into the sentinel text.
func guarded(sentinel string, fn func() (string, error)) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = sentinel
			err = fmt.Errorf("%s: panic: %v", strings.ToLower(sentinel), rec)
		}
	}()
	text, err = fn()
	if err != nil {
		return sentinel, err
	}
	return text, nil
}

// DocumentType is the coarse label sent to the RAG service alongside the text.
func DocumentType(mimeType string) string {
	switch normalizeMimeType(mimeType) {
	case MimePDF:
		return "PDF"
	case MimeDOCX:
		return "DOCX"
	case MimeRFC822, MimeEmailText:
		return "Email"
	default:
		return "Unknown"
	}
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}
