package ingest

import (
	"context"
	"errors"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// Reason categorizes why a file did not make it into the upload list.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonUnsupported Reason = "unsupported"
	ReasonTransport   Reason = "transport"
	ReasonCanceled    Reason = "canceled"
)

// Result is the outcome of normalizing one file of a batch.
type Result struct {
	Index int
	Name  string
	File  *model.UploadedFile
	Err   error
}

// OK reports whether the file was parsed.
func (r Result) OK() bool {
	return r.Err == nil && r.File != nil
}

// Reason classifies the failure, if any.
func (r Result) Reason() Reason {
	switch {
	case r.OK():
		return ReasonNone
	case errors.Is(r.Err, ErrUnsupportedType):
		return ReasonUnsupported
	case errors.Is(r.Err, context.Canceled), errors.Is(r.Err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonTransport
	}
}

// Succeeded returns the parsed files of results in input order.
func Succeeded(results []Result) []model.UploadedFile {
	files := make([]model.UploadedFile, 0, len(results))
	for _, r := range results {
		if r.OK() {
			files = append(files, *r.File)
		}
	}
	return files
}
