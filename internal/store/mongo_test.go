package store

import (
	"context"
	"testing"
	"time"

	"github.com/notekeep/apiserver/internal/db"
	"github.com/notekeep/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func noteDoc(id, userID, title string, createdAt time.Time, tags ...string) bson.D {
	tagValues := bson.A{}
	for _, tag := range tags {
		tagValues = append(tagValues, tag)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "userId", Value: userID},
		{Key: "title", Value: title},
		{Key: "content", Value: "content of " + title},
		{Key: "tags", Value: tagValues},
		{Key: "createdAt", Value: createdAt},
		{Key: "updatedAt", Value: createdAt},
	}
}

func TestMongoNoteRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "notekeep.notes", mtest.FirstBatch,
			noteDoc("n2", "u1", "Second", created.Add(time.Hour), "go"),
			noteDoc("n1", "u1", "First", created),
		))

		notes, err := repo.List(context.Background(), "u1", "")
		require.NoError(mt, err)
		require.Len(mt, notes, 2)
		assert.Equal(mt, "n2", notes[0].ID)
		assert.Equal(mt, []string{"go"}, notes[0].Tags)
		assert.Equal(mt, []string{}, notes[1].Tags)
	})

	mt.Run("get", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "notekeep.notes", mtest.FirstBatch,
			noteDoc("n1", "u1", "First", created, "a", "b"),
		))

		note, err := repo.Get(context.Background(), "u1", "n1")
		require.NoError(mt, err)
		assert.Equal(mt, "First", note.Title)
		assert.Equal(mt, []string{"a", "b"}, note.Tags)
		assert.True(mt, note.CreatedAt.Equal(created))
	})

	mt.Run("get not found", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "notekeep.notes", mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "u2", "n1")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		note, err := repo.Create(context.Background(), types.Note{UserID: "u1", Title: "T", Content: "C"})
		require.NoError(mt, err)
		assert.NotEmpty(mt, note.ID)
		assert.Equal(mt, []string{}, note.Tags)
	})

	mt.Run("update", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: noteDoc("n1", "u1", "Renamed", created, "kept"),
		}))

		title := "Renamed"
		note, err := repo.Update(context.Background(), "u1", "n1", types.NotePatch{Title: &title})
		require.NoError(mt, err)
		assert.Equal(mt, "Renamed", note.Title)
		assert.Equal(mt, []string{"kept"}, note.Tags)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewMongoNoteRepository(db.Ready(mt.DB))
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		require.NoError(mt, repo.Delete(context.Background(), "u1", "n1"))
		assert.ErrorIs(mt, repo.Delete(context.Background(), "u1", "n1"), ErrNotFound)
	})
}

func TestMongoUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create duplicate email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(db.Ready(mt.DB))
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: notekeep.users index: email_1",
		}))

		_, err := repo.Create(context.Background(), types.User{Name: "A", Email: "a@x.com", PasswordHash: "h"})
		assert.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(db.Ready(mt.DB))
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "notekeep.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "name", Value: "A"},
			{Key: "email", Value: "a@x.com"},
			{Key: "password", Value: "hash"},
			{Key: "createdAt", Value: now},
			{Key: "updatedAt", Value: now},
		}))

		user, err := repo.GetByEmail(context.Background(), "a@x.com")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", user.ID)
		assert.Equal(mt, "hash", user.PasswordHash)
	})
}
