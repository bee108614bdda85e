// Package backend implements the multipart HTTP contract spoken with the
// quality-assurance assistant service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

const (
	ChatPath          = "/api/chat"
	UploadPDFPath     = "/api/upload/pdf"
	UploadTabularPath = "/api/upload/csv"

	maxErrorBody = 4 << 10
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded into the
// expected shape.
var ErrMalformedResponse = errors.New("malformed backend response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Client talks to the assistant backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a backend client. A zero timeout leaves requests bounded
// only by their context.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("backend"),
	}
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends one chat exchange.
func (c *Client) Chat(ctx context.Context, req *model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
	history := req.History
	if history == nil {
		history = []model.Message{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat history: %w", err)
	}

	fileContext := req.FileContext
	if fileContext == nil {
		fileContext = []model.FileContextRecord{}
	}
	contextJSON, err := json.Marshal(fileContext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file context: %w", err)
	}

	fields := [][2]string{
		{"message", req.Message},
		{"chat_history", string(historyJSON)},
		{"persona", string(req.Persona)},
		{"csv_context", string(contextJSON)},
	}
	if req.RecipientEmail != "" {
		fields = append(fields, [2]string{"recipient_email", req.RecipientEmail})
	}

	body, contentType, err := encodeForm(fields, "", nil)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, ChatPath, contentType, body)
	if err != nil {
		return nil, err
	}

	return decodeChatResponse(raw)
}

// ParsePDF uploads a PDF and returns its extracted text.
func (c *Client) ParsePDF(ctx context.Context, filename string, r io.Reader) (*model.DocumentParseResponse, error) {
	body, contentType, err := encodeForm(nil, filename, r)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, UploadPDFPath, contentType, body)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Text     *string `json:"text"`
		Filename string  `json:"filename"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Text == nil {
		return nil, fmt.Errorf("%w: missing text", ErrMalformedResponse)
	}

	return &model.DocumentParseResponse{Text: *wire.Text, Filename: wire.Filename}, nil
}

// ParseTabular uploads a CSV or spreadsheet and returns its rows and columns.
func (c *Client) ParseTabular(ctx context.Context, filename string, r io.Reader) (*model.TabularParseResponse, error) {
	body, contentType, err := encodeForm(nil, filename, r)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, UploadTabularPath, contentType, body)
	if err != nil {
		return nil, err
	}

	var resp model.TabularParseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Columns == nil {
		return nil, fmt.Errorf("%w: missing columns", ErrMalformedResponse)
	}
	if resp.Data == nil {
		resp.Data = []model.Record{}
	}

	return &resp, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body *bytes.Buffer) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	c.logger.Debug("backend call completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: string(raw)}
	}

	return raw, nil
}

// encodeForm builds a multipart body from text fields and an optional file part.
func encodeForm(fields [][2]string, filename string, file io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	if file != nil {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("failed to copy %s: %w", filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func decodeChatResponse(raw []byte) (*model.ChatExchangeResponse, error) {
	var wire struct {
		Type       model.ResponseType `json:"type"`
		Message    *string            `json:"message"`
		ToolResult *model.ToolResult  `json:"tool_result"`
		ToolType   string             `json:"tool_type"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedResponse)
	}

	return &model.ChatExchangeResponse{
		Type:       wire.Type,
		Message:    *wire.Message,
		ToolResult: wire.ToolResult,
		ToolType:   wire.ToolType,
	}, nil
}
