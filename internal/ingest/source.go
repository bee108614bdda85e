package ingest

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// RawFile is a file selected for upload, before parsing.
type RawFile struct {
	Name     string
	Size     int64
	MimeType string
	Source   model.Source
}

type pathSource string

func (p pathSource) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

type bytesSource []byte

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FromBytes wraps in-memory content as a RawFile.
func FromBytes(name, mimeType string, data []byte) RawFile {
	return RawFile{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Source:   bytesSource(data),
	}
}

// FromPath describes a file on disk, declaring its media type from the
// extension.
func FromPath(path string) (RawFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RawFile{}, fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return RawFile{}, fmt.Errorf("%s is a directory", path)
	}

	return RawFile{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: DetectMimeType(path),
		Source:   pathSource(path),
	}, nil
}

var extensionTypes = map[string]string{
	".pdf":  model.MimePDF,
	".csv":  model.MimeCSV,
	".xls":  model.MimeXLS,
	".xlsx": model.MimeXLSX,
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
}

// DetectMimeType declares a media type for path from its extension, falling
// back to application/octet-stream.
func DetectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(mimeType, ";"); idx > 0 {
		mimeType = mimeType[:idx]
	}
	return mimeType
}
