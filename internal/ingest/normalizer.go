// Package ingest turns user-selected files into parsed, session-visible
// uploads by delegating parsing to the backend.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/tracing"
)

// ErrUnsupportedType is returned for media types outside the PDF, CSV and
// Excel families.
var ErrUnsupportedType = errors.New("file type not supported")

// Parser is the backend collaborator that performs the actual parsing.
type Parser interface {
	ParsePDF(ctx context.Context, filename string, r io.Reader) (*model.DocumentParseResponse, error)
	ParseTabular(ctx context.Context, filename string, r io.Reader) (*model.TabularParseResponse, error)
}

// Normalizer classifies a raw file and wraps the backend parse result.
type Normalizer struct {
	parser Parser
	newID  func() string
}

// NewNormalizer creates a normalizer backed by parser.
func NewNormalizer(parser Parser) *Normalizer {
	return &Normalizer{
		parser: parser,
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
}

// Normalize parses one file. Unsupported media types fail before any bytes
// are read.
func (n *Normalizer) Normalize(ctx context.Context, raw RawFile) (*model.UploadedFile, error) {
	kind := model.ClassifyMimeType(raw.MimeType)

	ctx, span := tracing.Tracer().Start(ctx, "ingest.normalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.name", raw.Name),
		attribute.String("file.mime_type", raw.MimeType),
		attribute.String("file.kind", string(kind)),
	)

	content, err := n.parse(ctx, kind, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalize failed")
		return nil, err
	}

	return &model.UploadedFile{
		ID:            n.newID(),
		Name:          raw.Name,
		Size:          raw.Size,
		MimeType:      raw.MimeType,
		Source:        raw.Source,
		ParsedContent: content,
	}, nil
}

func (n *Normalizer) parse(ctx context.Context, kind model.ContentKind, raw RawFile) (model.ParsedContent, error) {
	if kind == model.KindUnsupported {
		return nil, fmt.Errorf("%w: %s (%q)", ErrUnsupportedType, raw.Name, raw.MimeType)
	}
	if raw.Source == nil {
		return nil, fmt.Errorf("no content source for %s", raw.Name)
	}

	rc, err := raw.Source.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", raw.Name, err)
	}
	defer rc.Close()

	switch kind {
	case model.KindDocument:
		resp, err := n.parser.ParsePDF(ctx, raw.Name, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pdf %s: %w", raw.Name, err)
		}
		return model.DocumentContent{Text: resp.Text}, nil

	case model.KindTabular:
		resp, err := n.parser.ParseTabular(ctx, raw.Name, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse table %s: %w", raw.Name, err)
		}
		return model.TabularContent{Rows: resp.Data, Columns: resp.Columns}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
}
