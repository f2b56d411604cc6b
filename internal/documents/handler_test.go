package documents_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/bootstrap"
	"polisense-backend/internal/shared/config"
)

type ragCall struct {
	path string
	body map[string]any
}

type fakeRAG struct {
	mu    sync.Mutex
	calls []ragCall
}

func (f *fakeRAG) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		call := ragCall{path: r.URL.Path}
		_ = json.Unmarshal(data, &call.body)
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func (f *fakeRAG) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.path)
	}
	return out
}

func (f *fakeRAG) last(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].path == path {
			return f.calls[i].body
		}
	}
	return nil
}

func newTestApp(t *testing.T, adminToken string) (http.Handler, *fakeRAG) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rag := &fakeRAG{}
	srv := httptest.NewServer(rag.handler())
	t.Cleanup(srv.Close)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		RAGBaseURL:      srv.URL,
		RAGTimeout:      2 * time.Second,
		MaxUploadBytes:  1 << 20,
		AdminToken:      adminToken,
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app.Router, rag
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, file *formFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func upload(t *testing.T, router http.Handler, file *formFile, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, file, fields)
	req := httptest.NewRequest(http.MethodPost, "/user/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type uploadResponse struct {
	Message string `json:"message"`
	File    struct {
		ID         string `json:"id"`
		FileName   string `json:"filename"`
		MimeType   string `json:"mimetype"`
		Size       int64  `json:"size"`
		ParsedText string `json:"parsedText"`
	} `json:"file"`
	Warnings []string `json:"warnings"`
}

func TestUploadEmailTextForwardsToRAG(t *testing.T) {
	router, rag := newTestApp(t, "")
	text := "Subject: Renewal\nFrom: agent@example.com\n\nYour policy renews in May."

	resp := upload(t, router,
		&formFile{name: "pasted.txt", contentType: "text/plain", data: []byte(text)},
		map[string]string{"userId": "user-1", "isEmailText": "true"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var got uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if got.File.ID == "" {
		t.Fatalf("expected id")
	}
	if got.File.MimeType != "text/email" {
		t.Fatalf("expected mimetype text/email, got %s", got.File.MimeType)
	}
	if got.File.ParsedText != "Available" {
		t.Fatalf("expected parsedText Available, got %s", got.File.ParsedText)
	}
	if got.File.Size != int64(len(text)) {
		t.Fatalf("expected size %d, got %d", len(text), got.File.Size)
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", got.Warnings)
	}

	paths := strings.Join(rag.paths(), ",")
	if paths != "/clear_user_documents,/add_document" {
		t.Fatalf("unexpected rag calls %s", paths)
	}
	added := rag.last("/add_document")
	if added["document_id"] != got.File.ID || added["user_id"] != "user-1" || added["document_type"] != "Email" {
		t.Fatalf("unexpected add_document body %v", added)
	}
	if !strings.Contains(added["content"].(string), "Body:\n\nYour policy renews in May.") {
		t.Fatalf("unexpected content %q", added["content"])
	}
}

func TestUploadUnsupportedFileIsStoredWithoutText(t *testing.T) {
	router, rag := newTestApp(t, "")

	resp := upload(t, router,
		&formFile{name: "photo.png", contentType: "image/png", data: []byte{0x89, 'P', 'N', 'G'}},
		map[string]string{"userId": "user-1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var got uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.File.ParsedText != "Not available" {
		t.Fatalf("expected Not available, got %s", got.File.ParsedText)
	}
	if rag.last("/add_document") != nil {
		t.Fatalf("nothing should be forwarded without text")
	}
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	router, _ := newTestApp(t, "")

	resp := upload(t, router, nil, map[string]string{"userId": "user-1"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "No file uploaded" {
		t.Fatalf("unexpected error body %v", body)
	}

	list := httptest.NewRequest(http.MethodGet, "/user/documents?userId=user-1", nil)
	listResp := httptest.NewRecorder()
	router.ServeHTTP(listResp, list)
	if !strings.Contains(listResp.Body.String(), `"items":[]`) {
		t.Fatalf("no record should exist, got %s", listResp.Body.String())
	}
}

func TestUploadWithoutOwnerReturns400(t *testing.T) {
	router, _ := newTestApp(t, "")

	resp := upload(t, router, &formFile{name: "a.txt", contentType: "text/plain", data: []byte("x")}, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUploadTooLargeReturns413(t *testing.T) {
	router, _ := newTestApp(t, "")

	resp := upload(t, router,
		&formFile{name: "big.bin", contentType: "application/octet-stream", data: bytes.Repeat([]byte("a"), 2<<20)},
		map[string]string{"userId": "user-1"})
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", resp.Code)
	}
}

func TestClearOwnerDocuments(t *testing.T) {
	router, rag := newTestApp(t, "")

	for _, owner := range []string{"alice", "bob"} {
		resp := upload(t, router, &formFile{name: "a.txt", contentType: "text/plain", data: []byte("hello")}, map[string]string{"userId": owner, "isEmailText": "true"})
		if resp.Code != http.StatusOK {
			t.Fatalf("upload for %s: %d", owner, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/user/clear-all-documents", strings.NewReader(`{"userId":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var cleared struct {
		Message          string `json:"message"`
		DocumentsDeleted int    `json:"documentsDeleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cleared.DocumentsDeleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", cleared.DocumentsDeleted)
	}
	if got := rag.last("/clear_user_documents"); got["user_id"] != "alice" {
		t.Fatalf("unexpected clear body %v", got)
	}

	list := httptest.NewRequest(http.MethodGet, "/user/documents", nil)
	list.Header.Set("X-User-Id", "bob")
	listResp := httptest.NewRecorder()
	router.ServeHTTP(listResp, list)
	var docs struct {
		Items []struct {
			ID           string `json:"id"`
			DocumentType string `json:"documentType"`
		} `json:"items"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(docs.Items) != 1 || docs.Items[0].DocumentType != "Email" {
		t.Fatalf("bob's document should survive, got %+v", docs.Items)
	}
}

func TestClearOwnerRequiresUserID(t *testing.T) {
	router, _ := newTestApp(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/user/clear-all-documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestAdminClearAll(t *testing.T) {
	router, rag := newTestApp(t, "s3cret")
	for _, owner := range []string{"alice", "bob"} {
		upload(t, router, &formFile{name: "a.txt", contentType: "text/plain", data: []byte("x")}, map[string]string{"userId": owner})
	}

	unauthorized := httptest.NewRequest(http.MethodDelete, "/admin/clear-all-documents", nil)
	unauthorizedResp := httptest.NewRecorder()
	router.ServeHTTP(unauthorizedResp, unauthorized)
	if unauthorizedResp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", unauthorizedResp.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/admin/clear-all-documents", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"documentsDeleted":2`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if !strings.Contains(strings.Join(rag.paths(), ","), "/clear_all_documents") {
		t.Fatalf("expected clear_all_documents call, got %v", rag.paths())
	}
}

func TestAdminRouteAbsentWithoutToken(t *testing.T) {
	router, _ := newTestApp(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/admin/clear-all-documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUploadCorruptPDFStillSucceeds(t *testing.T) {
	router, rag := newTestApp(t, "")

	resp := upload(t, router,
		&formFile{name: "broken.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 truncated")},
		map[string]string{"userId": "user-1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.File.ParsedText != "Available" {
		t.Fatalf("expected parsedText Available, got %s", got.File.ParsedText)
	}
	added := rag.last("/add_document")
	if added == nil || added["content"] != "PDF parsing failed" || added["document_type"] != "PDF" {
		t.Fatalf("expected sentinel forwarded, got %v", added)
	}
}

func TestUploadRejectsOversizeUserID(t *testing.T) {
	router, rag := newTestApp(t, "")

	resp := upload(t, router,
		&formFile{name: "a.txt", contentType: "text/plain", data: []byte("x")},
		map[string]string{"userId": strings.Repeat("u", 129)})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Invalid userId") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if len(rag.paths()) != 0 {
		t.Fatalf("rag should not be called, got %v", rag.paths())
	}
}

func TestGetAndDownloadDocument(t *testing.T) {
	router, _ := newTestApp(t, "")
	data := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}

	resp := upload(t, router,
		&formFile{name: "scan.png", contentType: "image/png", data: data},
		map[string]string{"userId": "alice"})
	if resp.Code != http.StatusOK {
		t.Fatalf("upload: %d", resp.Code)
	}
	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := uploaded.File.ID

	get := func(path, owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if owner != "" {
			req.Header.Set("X-User-Id", owner)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	meta := get("/user/documents/"+id, "alice")
	if meta.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", meta.Code, meta.Body.String())
	}
	var doc struct {
		ID         string `json:"id"`
		FileName   string `json:"filename"`
		ParsedText string `json:"parsedText"`
	}
	if err := json.NewDecoder(meta.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != id || doc.FileName != "scan.png" || doc.ParsedText != "Not available" {
		t.Fatalf("unexpected document %+v", doc)
	}

	raw := get("/user/documents/"+id+"/raw", "alice")
	if raw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", raw.Code, raw.Body.String())
	}
	if !bytes.Equal(raw.Body.Bytes(), data) {
		t.Fatalf("unexpected bytes %v", raw.Body.Bytes())
	}
	if got := raw.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := raw.Header().Get("Content-Disposition"); !strings.Contains(got, "scan.png") {
		t.Fatalf("unexpected content disposition %q", got)
	}

	if w := get("/user/documents/"+id, "bob"); w.Code != http.StatusNotFound {
		t.Fatalf("other owners must not see the document, got %d", w.Code)
	}
	if w := get("/user/documents/"+id+"/raw", "bob"); w.Code != http.StatusNotFound {
		t.Fatalf("other owners must not download the document, got %d", w.Code)
	}
	if w := get("/user/documents/"+id, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without owner, got %d", w.Code)
	}
}

func TestDownloadAfterClearReturns404(t *testing.T) {
	router, _ := newTestApp(t, "")

	resp := upload(t, router, &formFile{name: "a.txt", contentType: "text/plain", data: []byte("x")}, map[string]string{"userId": "alice"})
	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	clearReq := httptest.NewRequest(http.MethodDelete, "/user/clear-all-documents", strings.NewReader(`{"userId":"alice"}`))
	clearReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), clearReq)

	req := httptest.NewRequest(http.MethodGet, "/user/documents/"+uploaded.File.ID+"/raw?userId=alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
