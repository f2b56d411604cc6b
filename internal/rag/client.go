package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstreamUnavailable wraps every failed call to the retrieval service.
var ErrUpstreamUnavailable = errors.New("rag service unavailable")

const (
	defaultTimeout  = 60 * time.Second
	maxErrorExcerpt = 512
)

// Client talks to the external retrieval-augmented answering service.
// Every call is attempted exactly once.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a Client. A zero timeout uses 60s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AddDocumentRequest is the body of POST /add_document.
type AddDocumentRequest struct {
	DocumentID   string `json:"document_id"`
	Content      string `json:"content"`
	Filename     string `json:"filename"`
	UserID       string `json:"user_id"`
	DocumentType string `json:"document_type"`
}

type queryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

type clearUserRequest struct {
	UserID string `json:"user_id"`
}

// AddDocument indexes one document's text for its owner.
func (c *Client) AddDocument(ctx context.Context, req AddDocumentRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/add_document", req)
	return err
}

// Query asks a question scoped to one owner and returns the raw response envelope.
// Use Normalize to turn it into an Answer.
func (c *Client) Query(ctx context.Context, question, userID string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/query", queryRequest{Question: question, UserID: userID})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ClearUserDocuments drops every indexed document of one owner.
func (c *Client) ClearUserDocuments(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodPost, "/clear_user_documents", clearUserRequest{UserID: userID})
	return err
}

// ClearAllDocuments drops the whole index.
func (c *Client) ClearAllDocuments(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/clear_all_documents", nil)
	return err
}

// Health returns the service's health document.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: base url not configured", ErrUpstreamUnavailable)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("%w: %s %s timeout: %w", ErrUpstreamUnavailable, method, path, err)
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", ErrUpstreamUnavailable, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstreamUnavailable, method, path, resp.StatusCode, excerpt(body))
	}
	return body, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorExcerpt {
		s = s[:maxErrorExcerpt] + "..."
	}
	return s
}
