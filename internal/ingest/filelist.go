package ingest

import (
	"slices"
	"sync"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// FileList is the session's visible list of parsed uploads.
type FileList struct {
	mu    sync.RWMutex
	files []model.UploadedFile
}

// NewFileList creates an empty list.
func NewFileList() *FileList {
	return &FileList{}
}

// Append adds files after the existing entries, skipping anything without
// parsed content. It returns how many were added.
func (l *FileList) Append(files ...model.UploadedFile) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, f := range files {
		if f.Kind() == model.KindUnsupported {
			continue
		}
		l.files = append(l.files, f)
		added++
	}
	return added
}

// Remove deletes the file with id and reports whether it existed.
func (l *FileList) Remove(id string) (model.UploadedFile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, f := range l.files {
		if f.ID == id {
			l.files = slices.Delete(l.files, i, i+1)
			return f, true
		}
	}
	return model.UploadedFile{}, false
}

// Files returns a snapshot of the list.
func (l *FileList) Files() []model.UploadedFile {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.files)
}

// Len returns the number of files.
func (l *FileList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.files)
}
