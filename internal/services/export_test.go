package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects     map[string][]byte
	contentType string
	err         error
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = buf.Bytes()
	f.contentType = contentType
	return nil
}

func (f *fakeObjects) Bucket() string { return "notekeep" }

func TestExportService_Export(t *testing.T) {
	notes := newTestNoteService()
	ctx := context.Background()

	_, err := notes.Create(ctx, "u1", "A", "a", nil)
	require.NoError(t, err)
	_, err = notes.Create(ctx, "u1", "B", "b", []string{"x"})
	require.NoError(t, err)
	_, err = notes.Create(ctx, "u2", "other", "other", nil)
	require.NoError(t, err)

	objects := &fakeObjects{}
	svc := NewExportService(notes, objects)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Export(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "exports/u1/20260301T120000.000000000Z.json", res.Key)
	assert.Equal(t, "notekeep", res.Bucket)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "application/json", objects.contentType)

	var doc exportDocument
	require.NoError(t, json.Unmarshal(objects.objects[res.Key], &doc))
	assert.Equal(t, "u1", doc.UserID)
	require.Len(t, doc.Notes, 2)
	assert.Equal(t, "B", doc.Notes[0].Title)
}

func TestExportService_UploadFailure(t *testing.T) {
	svc := NewExportService(newTestNoteService(), &fakeObjects{err: errBoom})

	_, err := svc.Export(context.Background(), "u1")
	assert.ErrorIs(t, err, errBoom)
}
