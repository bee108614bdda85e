package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

func newTestRouter(ready func() bool) http.Handler {
	return NewRouter(RouterConfig{MaxUploadBytes: 1 << 20, Ready: ready}, logger.Nop())
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealthAndReady(t *testing.T) {
	ready := false
	router := newTestRouter(func() bool { return ready })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready before ready = %d", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/ready = %d", rec.Code)
	}
}

func TestChat_Echo(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/chat", map[string]string{
		"message":      "How do I read a run chart?",
		"chat_history": `[{"role":"user","content":"hi"}]`,
		"persona":      "Skeptical Manager",
		"csv_context":  "[]",
	}, "", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp model.ChatExchangeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != model.ResponseChat {
		t.Errorf("type = %s", resp.Type)
	}
	if !strings.HasPrefix(resp.Message, "[Skeptical Manager]") || !strings.Contains(resp.Message, "1 prior messages") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestChat_ToolGeneration(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/chat", map[string]string{
		"message": "Show a histogram of diameters",
	}, "", ""))

	var resp model.ChatExchangeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != model.ResponseToolGeneration || resp.ToolType != "histogram" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ToolResult == nil || !resp.ToolResult.Success || resp.ToolResult.ChartImage == "" {
		t.Errorf("tool result = %+v", resp.ToolResult)
	}
}

func TestChat_Errors(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/chat", map[string]string{"message": ""}, "", ""))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty message status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/chat", map[string]string{
		"message":      "hi",
		"chat_history": "{not json",
	}, "", ""))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("bad history status = %d", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["detail"] == "" {
		t.Error("error body missing detail")
	}
}

func TestUpload_Tabular(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/upload/csv", nil, "defects.csv", "defect,count\nscratch,3\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp model.TabularParseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Columns) != 2 || len(resp.Data) != 1 || resp.Data[0]["count"] != 3.0 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	router := newTestRouter(nil)

	for _, path := range []string{"/api/upload/csv", "/api/upload/pdf"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, path, map[string]string{"other": "x"}, "", ""))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestUpload_InvalidPDF(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/upload/pdf", nil, "broken.pdf", "not a pdf"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUpload_EmptyPDF(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/upload/pdf", nil, "blank.pdf", ""))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["detail"] != "pdf is empty" {
		t.Errorf("detail = %q", body["detail"])
	}
}
