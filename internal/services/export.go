package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/notekeep/apiserver/types"
)

// ObjectStore is the subset of object storage used for exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

type exportDocument struct {
	UserID     string       `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Notes      []types.Note `json:"notes"`
}

// ExportService writes a user's notes to object storage as JSON.
type ExportService struct {
	notes   *NoteService
	objects ObjectStore
	now     func() time.Time
}

func NewExportService(notes *NoteService, objects ObjectStore) *ExportService {
	return &ExportService{notes: notes, objects: objects, now: time.Now}
}

// Export uploads all of the user's notes and returns where they were written.
func (s *ExportService) Export(ctx context.Context, userID string) (types.NoteExport, error) {
	notes, err := s.notes.List(ctx, userID, "")
	if err != nil {
		return types.NoteExport{}, err
	}

	now := s.now().UTC()
	data, err := json.MarshalIndent(exportDocument{
		UserID:     userID,
		ExportedAt: now,
		Notes:      notes,
	}, "", "  ")
	if err != nil {
		return types.NoteExport{}, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s.json", userID, now.Format("20060102T150405.000000000Z"))
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return types.NoteExport{}, fmt.Errorf("upload export: %w", err)
	}

	return types.NoteExport{
		Key:    key,
		Bucket: s.objects.Bucket(),
		Count:  len(notes),
	}, nil
}
