package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// tabularPayload is the structured text carried in a tabular FileContextRecord.
type tabularPayload struct {
	Columns []string       `json:"columns"`
	Rows    []model.Record `json:"rows"`
}

// BuildFileContext serializes the uploaded files for one request. An empty
// list yields an empty, non-nil slice.
func BuildFileContext(files []model.UploadedFile) ([]model.FileContextRecord, error) {
	records := make([]model.FileContextRecord, 0, len(files))

	for _, f := range files {
		rec := model.FileContextRecord{
			Name:     f.Name,
			MimeType: f.MimeType,
			Metadata: map[string]any{
				"id":   f.ID,
				"size": f.Size,
				"kind": string(f.Kind()),
			},
		}

		switch content := f.ParsedContent.(type) {
		case model.TabularContent:
			rows := content.Rows
			if rows == nil {
				rows = []model.Record{}
			}
			columns := content.Columns
			if columns == nil {
				columns = []string{}
			}
			data, err := json.Marshal(tabularPayload{Columns: columns, Rows: rows})
			if err != nil {
				return nil, fmt.Errorf("failed to serialize %s: %w", f.Name, err)
			}
			rec.Content = string(data)
			rec.Metadata["columns"] = columns
			rec.Metadata["rowCount"] = len(rows)

		case model.DocumentContent:
			rec.Content = content.Text
			rec.Metadata["characters"] = len(content.Text)

		default:
			// Unsupported files never enter the upload list.
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

// DecodeTabularContext parses the content of a tabular FileContextRecord back
// into rows and columns.
func DecodeTabularContext(rec model.FileContextRecord) ([]model.Record, []string, error) {
	if model.ClassifyMimeType(rec.MimeType) != model.KindTabular {
		return nil, nil, errors.New("record is not tabular")
	}

	var payload tabularPayload
	if err := json.Unmarshal([]byte(rec.Content), &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode tabular context: %w", err)
	}
	return payload.Rows, payload.Columns, nil
}
