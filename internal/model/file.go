package model

import (
	"io"
	"strings"
)

// ContentKind tags the variant held by an UploadedFile.
type ContentKind string

const (
	KindTabular     ContentKind = "csv"
	KindDocument    ContentKind = "pdf"
	KindUnsupported ContentKind = "unsupported"
)

// ParsedContent is the normalized result of parsing an uploaded file. It is
// implemented only by TabularContent, DocumentContent and UnsupportedContent.
type ParsedContent interface {
	Kind() ContentKind
	sealed()
}

// Record is one row of tabular data keyed by column name.
type Record map[string]any

// TabularContent holds parsed CSV or spreadsheet data.
type TabularContent struct {
	Rows    []Record `json:"rows"`
	Columns []string `json:"columns"`
}

func (TabularContent) Kind() ContentKind { return KindTabular }
func (TabularContent) sealed()           {}

// DocumentContent holds text extracted from a PDF.
type DocumentContent struct {
	Text string `json:"text"`
}

func (DocumentContent) Kind() ContentKind { return KindDocument }
func (DocumentContent) sealed()           {}

// UnsupportedContent marks a media type the pipeline cannot handle. It never
// appears in the visible uploaded-file list.
type UnsupportedContent struct {
	MimeType string `json:"mimeType"`
}

func (UnsupportedContent) Kind() ContentKind { return KindUnsupported }
func (UnsupportedContent) sealed()           {}

// Source reopens the original bytes of a file.
type Source interface {
	Open() (io.ReadCloser, error)
}

// UploadedFile is a successfully parsed file attached to the session.
type UploadedFile struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Size          int64         `json:"size"`
	MimeType      string        `json:"mimeType"`
	Source        Source        `json:"-"`
	ParsedContent ParsedContent `json:"-"`
}

// Kind returns the content kind, or KindUnsupported when nothing was parsed.
func (f *UploadedFile) Kind() ContentKind {
	if f.ParsedContent == nil {
		return KindUnsupported
	}
	return f.ParsedContent.Kind()
}

// Media types accepted by the upload pipeline.
const (
	MimePDF  = "application/pdf"
	MimeCSV  = "text/csv"
	MimeXLS  = "application/vnd.ms-excel"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ClassifyMimeType maps a declared media type onto a content kind. Parameters
// such as charset are ignored.
func ClassifyMimeType(mimeType string) ContentKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}

	switch {
	case mt == MimePDF:
		return KindDocument
	case mt == MimeCSV, mt == "application/csv":
		return KindTabular
	case strings.HasPrefix(mt, MimeXLS), strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument.spreadsheetml."):
		return KindTabular
	default:
		return KindUnsupported
	}
}

// FileContextRecord is the per-request serialization of an uploaded file.
type FileContextRecord struct {
	Name     string         `json:"name"`
	MimeType string         `json:"mimeType"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// DocumentParseResponse is the body of POST /api/upload/pdf.
type DocumentParseResponse struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// TabularParseResponse is the body of POST /api/upload/csv.
type TabularParseResponse struct {
	Data     []Record `json:"data"`
	Columns  []string `json:"columns"`
	Filename string   `json:"filename,omitempty"`
}
