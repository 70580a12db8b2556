package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notekeep/apiserver/internal/db"
	"github.com/notekeep/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	notesCollection = "notes"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d userDocument) user() types.User {
	return types.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type noteDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	Tags      []string  `bson:"tags"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d noteDocument) note() types.Note {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return types.Note{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		Content:   d.Content,
		Tags:      tags,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// EnsureMongoIndexes creates the unique email index and the per-owner listing
// index. It is safe to call repeatedly.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	if _, err := database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := database.Collection(notesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

// MongoUserRepository handles persistence for users in MongoDB.
type MongoUserRepository struct {
	conn *db.Lazy[*mongo.Database]
}

func NewMongoUserRepository(conn *db.Lazy[*mongo.Database]) *MongoUserRepository {
	return &MongoUserRepository{conn: conn}
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return types.User{}, err
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, userDocument{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return types.User{}, err
	}

	var doc userDocument
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return doc.user(), nil
}

func (r *MongoUserRepository) collection(ctx context.Context) (*mongo.Collection, error) {
	database, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	return database.Collection(usersCollection), nil
}

// MongoNoteRepository handles persistence for notes in MongoDB. Every filter
// includes the owning user.
type MongoNoteRepository struct {
	conn *db.Lazy[*mongo.Database]
}

func NewMongoNoteRepository(conn *db.Lazy[*mongo.Database]) *MongoNoteRepository {
	return &MongoNoteRepository{conn: conn}
}

func (r *MongoNoteRepository) List(ctx context.Context, userID, search string) ([]types.Note, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"userId": userID}
	if search = strings.TrimSpace(search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
		}
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []noteDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	notes := make([]types.Note, 0, len(docs))
	for _, doc := range docs {
		notes = append(notes, doc.note())
	}
	return notes, nil
}

func (r *MongoNoteRepository) Get(ctx context.Context, userID, id string) (types.Note, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return types.Note{}, err
	}

	var doc noteDocument
	if err := coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return doc.note(), nil
}

func (r *MongoNoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return types.Note{}, err
	}

	now := time.Now().UTC()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}

	if _, err := coll.InsertOne(ctx, noteDocument{
		ID:        note.ID,
		UserID:    note.UserID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      note.Tags,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}); err != nil {
		return types.Note{}, err
	}
	return note, nil
}

func (r *MongoNoteRepository) Update(ctx context.Context, userID, id string, patch types.NotePatch) (types.Note, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return types.Note{}, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}

	var doc noteDocument
	err = coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return doc.note(), nil
}

func (r *MongoNoteRepository) Delete(ctx context.Context, userID, id string) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoNoteRepository) collection(ctx context.Context) (*mongo.Collection, error) {
	database, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	return database.Collection(notesCollection), nil
}
