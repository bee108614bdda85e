package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
)

// Coordinator uploads a batch of files concurrently and keeps input order.
type Coordinator struct {
	normalizer  *Normalizer
	concurrency int
	logger      *logger.Logger
}

// NewCoordinator creates a batch coordinator. A concurrency below one runs
// every file of a batch at once.
func NewCoordinator(normalizer *Normalizer, concurrency int, log *logger.Logger) *Coordinator {
	return &Coordinator{
		normalizer:  normalizer,
		concurrency: concurrency,
		logger:      log.Named("ingest"),
	}
}

// Normalize runs every file through the normalizer concurrently. The returned
// slice is indexed like files regardless of completion order. A failing file
// never affects the others.
func (c *Coordinator) Normalize(ctx context.Context, files []RawFile) []Result {
	results := make([]Result, len(files))

	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}

	for i, raw := range files {
		g.Go(func() error {
			results[i] = c.normalizeOne(ctx, i, raw)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Upload normalizes files and appends the parsed ones to list in input order.
func (c *Coordinator) Upload(ctx context.Context, list *FileList, files []RawFile) []Result {
	results := c.Normalize(ctx, files)
	added := list.Append(Succeeded(results)...)

	c.logger.Info("upload batch completed",
		zap.Int("requested", len(files)),
		zap.Int("added", added),
		zap.Int("total", list.Len()),
	)

	return results
}

func (c *Coordinator) normalizeOne(ctx context.Context, index int, raw RawFile) (res Result) {
	res = Result{Index: index, Name: raw.Name}

	defer func() {
		if r := recover(); r != nil {
			res.File = nil
			res.Err = fmt.Errorf("panic while normalizing %s: %v", raw.Name, r)
		}
		c.record(raw, res)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	file, err := c.normalizer.Normalize(ctx, raw)
	res.File = file
	res.Err = err
	return res
}

func (c *Coordinator) record(raw RawFile, res Result) {
	kind := string(model.ClassifyMimeType(raw.MimeType))
	if res.OK() {
		metrics.RecordUpload(kind, "success")
		return
	}

	metrics.RecordUpload(kind, string(res.Reason()))
	c.logger.Warn("file excluded from upload",
		zap.String("file", raw.Name),
		zap.Int("index", res.Index),
		zap.String("mime_type", raw.MimeType),
		zap.String("reason", string(res.Reason())),
		zap.Error(res.Err),
	)
}
