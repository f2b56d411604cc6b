package extract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/jhillyerd/enmime"
)

// extractEML parses an RFC822 message, preferring the text body over HTML.
func extractEML(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.New("empty eml data")
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	body := strings.TrimSpace(env.Text)
	if body == "" {
		body = strings.TrimSpace(env.HTML)
	}
	fields := emailFields{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		To:      env.GetHeader("To"),
		Date:    env.GetHeader("Date"),
		Body:    body,
	}
	return fields.render(defaultEMLBody), nil
}
