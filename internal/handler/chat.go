package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/middleware"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/service"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

const maxChatForm = 32 << 20

// toolKeywords maps phrases in a request to the chart tool they trigger.
var toolKeywords = []struct {
	keyword  string
	toolType string
}{
	{"pareto", "pareto_chart"},
	{"histogram", "histogram"},
	{"control chart", "control_chart"},
	{"capability", "process_capability"},
	{"fishbone", "fishbone_diagram"},
}

// ChatHandler answers POST /api/chat with deterministic replies.
type ChatHandler struct {
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(log *logger.Logger) *ChatHandler {
	return &ChatHandler{logger: log}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChatForm); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	message := r.FormValue("message")
	if err := middleware.ValidateMessageContent(message); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	persona := r.FormValue("persona")
	if persona == "" {
		persona = string(model.DefaultPersona)
	}

	var history []model.Message
	if raw := r.FormValue("chat_history"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			writeError(w, http.StatusInternalServerError, "invalid chat_history")
			return
		}
	}

	var files []model.FileContextRecord
	if raw := r.FormValue("csv_context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &files); err != nil {
			writeError(w, http.StatusInternalServerError, "invalid csv_context")
			return
		}
	}

	h.logger.Debug("chat request",
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("persona", persona),
		zap.Int("history", len(history)),
		zap.Int("files", len(files)),
		zap.Bool("recipient_email", r.FormValue("recipient_email") != ""),
	)

	if toolType := detectTool(message); toolType != "" {
		resp, err := toolResponse(toolType, files)
		if err != nil {
			writeJSON(w, http.StatusOK, &model.ChatExchangeResponse{
				Type:    model.ResponseError,
				Message: "Failed to generate " + toolType,
			})
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeJSON(w, http.StatusOK, &model.ChatExchangeResponse{
		Type: model.ResponseChat,
		Message: fmt.Sprintf("[%s] Received %q with %d prior messages and %d attached files.",
			persona, message, len(history), len(files)),
	})
}

func detectTool(message string) string {
	lower := strings.ToLower(message)
	for _, tk := range toolKeywords {
		if strings.Contains(lower, tk.keyword) {
			return tk.toolType
		}
	}
	return ""
}

func toolResponse(toolType string, files []model.FileContextRecord) (*model.ChatExchangeResponse, error) {
	chart, err := placeholderChart(len(files) + 3)
	if err != nil {
		return nil, err
	}

	rows := 0
	columns := []string{}
	for _, f := range files {
		if n, ok := f.Metadata["rowCount"].(float64); ok {
			rows += int(n)
		}
		if _, cols, err := service.DecodeTabularContext(f); err == nil {
			columns = append(columns, cols...)
		}
	}

	title := strings.ReplaceAll(toolType, "_", " ")
	return &model.ChatExchangeResponse{
		Type:     model.ResponseToolGeneration,
		Message:  "Successfully generated " + title,
		ToolType: toolType,
		ToolResult: &model.ToolResult{
			Success:    true,
			ToolType:   toolType,
			ChartImage: chart,
			DataSummary: map[string]any{
				"files":   len(files),
				"rows":    rows,
				"columns": columns,
			},
			ChartMetadata: map[string]any{
				"title":  title,
				"format": "png",
			},
		},
	}, nil
}

// placeholderChart draws a small bar chart and returns it base64 encoded.
func placeholderChart(bars int) (string, error) {
	const width, height = 120, 80

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	barColor := color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	slot := width / bars
	for i := 0; i < bars; i++ {
		top := height - (height*(bars-i))/(bars+1)
		for y := top; y < height; y++ {
			for x := i*slot + 2; x < (i+1)*slot-2; x++ {
				img.Set(x, y, barColor)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
