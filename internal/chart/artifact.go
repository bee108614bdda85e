// Package chart decodes and exports chart images returned with tool results.
package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
)

const (
	// FileSuffix ends every exported chart filename.
	FileSuffix = "-chart.png"

	defaultBase = "qa"
	dataPrefix  = "data:"
)

// ErrEmptyChart is returned when there is no chart payload to work with.
var ErrEmptyChart = errors.New("chart data is empty")

var separators = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Info describes a decoded chart image.
type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// DisplayURL returns a data URL for rendering chartData as-is. The base64
// payload is never re-encoded.
func DisplayURL(chartData string) string {
	if chartData == "" {
		return ""
	}
	if strings.HasPrefix(chartData, dataPrefix) {
		return chartData
	}
	return "data:image/png;base64," + chartData
}

// Decode strips any data-URL prefix and returns the raw image bytes.
func Decode(chartData string) ([]byte, error) {
	payload := stripPrefix(chartData)
	if payload == "" {
		return nil, ErrEmptyChart
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("failed to decode chart: %w", err)
		}
		data = raw
	}
	return data, nil
}

// Inspect decodes chartData and reads the image header.
func Inspect(chartData string) (Info, error) {
	data, err := Decode(chartData)
	if err != nil {
		return Info{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to read chart image: %w", err)
	}

	return Info{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}, nil
}

// FileName derives the export filename from toolType: runs of
// non-alphanumeric characters become a single "-", followed by FileSuffix.
func FileName(toolType string) string {
	base := strings.Trim(separators.ReplaceAllString(toolType, "-"), "-")
	if base == "" {
		base = defaultBase
	}
	return base + FileSuffix
}

// Export decodes chartData and writes it into dir under FileName(toolType),
// returning the written path. chartData itself is left untouched.
func Export(chartData, toolType, dir string) (string, error) {
	data, err := Decode(chartData)
	if err != nil {
		metrics.ChartExportsTotal.WithLabelValues("failure").Inc()
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		metrics.ChartExportsTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(toolType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		metrics.ChartExportsTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	metrics.ChartExportsTotal.WithLabelValues("success").Inc()
	return path, nil
}

func stripPrefix(chartData string) string {
	s := strings.TrimSpace(chartData)
	if strings.HasPrefix(s, dataPrefix) {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return s
}
