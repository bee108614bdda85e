package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/middleware"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/pkg/pdfextract"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/pkg/tabular"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

// UploadHandler handles the parse-on-upload endpoints.
type UploadHandler struct {
	maxBytes int64
	logger   *logger.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(maxBytes int64, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		maxBytes: maxBytes,
		logger:   log,
	}
}

// PDF handles POST /api/upload/pdf
func (h *UploadHandler) PDF(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	text, err := pdfextract.ExtractText(file)
	switch {
	case errors.Is(err, pdfextract.ErrEmptyDocument), errors.Is(err, pdfextract.ErrEncrypted):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, pdfextract.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, "no text could be extracted from "+header.Filename)
		return
	case err != nil:
		h.logger.Warn("pdf extraction failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &model.DocumentParseResponse{
		Text:     text,
		Filename: header.Filename,
	})
}

// Tabular handles POST /api/upload/csv
func (h *UploadHandler) Tabular(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	resp, err := tabular.Parse(header.Filename, file)
	if err != nil {
		h.logger.Warn("table parse failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *UploadHandler) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, *multipart.FileHeader, bool) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "field required: file")
		return nil, nil, false
	}
	if err := middleware.ValidateFilename(header.Filename); err != nil {
		file.Close()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, nil, false
	}

	return file, header, true
}
