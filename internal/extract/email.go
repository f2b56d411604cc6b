package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	defaultSubject = "No subject"
	defaultFrom    = "Unknown sender"
	defaultTo      = "Unknown recipient"
	defaultDate    = "Unknown date"
	defaultEMLBody = "No content"
	headerSubject  = "Subject:"
	headerFrom     = "From:"
	headerTo       = "To:"
	headerDate     = "Date:"
	bodyLabel      = "Body:"
)

// emailFields is the header/body split used to render email-like uploads.
type emailFields struct {
	Subject string
	From    string
	To      string
	Date    string
	Body    string
}

// render produces the fixed Subject/From/To/Date + Body template.
// fallbackBody is used when no body was captured.
func (f emailFields) render(fallbackBody string) string {
	body := f.Body
	if body == "" {
		body = fallbackBody
	}
	var b strings.Builder
	b.WriteString(headerSubject + " " + orDefault(f.Subject, defaultSubject) + "\n")
	b.WriteString(headerFrom + " " + orDefault(f.From, defaultFrom) + "\n")
	b.WriteString(headerTo + " " + orDefault(f.To, defaultTo) + "\n")
	b.WriteString(headerDate + " " + orDefault(f.Date, defaultDate) + "\n")
	b.WriteString("\n" + bodyLabel + "\n\n")
	b.WriteString(body)
	return b.String()
}

// emailText handles pasted email text. Without a From:/Subject: marker the
// decoded text is returned verbatim.
func emailText(data []byte) string {
	text := decodeText(data)
	if !strings.Contains(text, headerFrom) && !strings.Contains(text, headerSubject) {
		return text
	}
	return parseHeaderText(text).render(text)
}

func parseHeaderText(text string) emailFields {
	var (
		fields    emailFields
		sawHeader bool
		inBody    bool
		bodyLines []string
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}
		switch {
		case strings.HasPrefix(line, headerSubject):
			fields.Subject = strings.TrimSpace(line[len(headerSubject):])
			sawHeader = true
		case strings.HasPrefix(line, headerFrom):
			fields.From = strings.TrimSpace(line[len(headerFrom):])
			sawHeader = true
		case strings.HasPrefix(line, headerTo):
			fields.To = strings.TrimSpace(line[len(headerTo):])
			sawHeader = true
		case strings.HasPrefix(line, headerDate):
			fields.Date = strings.TrimSpace(line[len(headerDate):])
			sawHeader = true
		case sawHeader && strings.TrimSpace(line) == "":
			inBody = true
		}
	}
	fields.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	return fields
}

// decodeText reads data as UTF-8, falling back to Windows-1252 for legacy bytes.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
