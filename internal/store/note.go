package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notekeep/apiserver/internal/db"
	"github.com/notekeep/apiserver/types"
)

const noteColumns = `id, user_id, title, content, tags, created_at, updated_at`

// NoteRepository handles persistence for notes in PostgreSQL. Every query is
// scoped by the owning user.
type NoteRepository struct {
	conn *db.Lazy[*sql.DB]
}

func NewNoteRepository(conn *db.Lazy[*sql.DB]) *NoteRepository {
	return &NoteRepository{conn: conn}
}

func (r *NoteRepository) List(ctx context.Context, userID, search string) ([]types.Note, error) {
	conn, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if search = strings.TrimSpace(search); search == "" {
		const query = `
			SELECT ` + noteColumns + `
			FROM notes
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC`
		rows, err = conn.QueryContext(ctx, query, userID)
	} else {
		const query = `
			SELECT ` + noteColumns + `
			FROM notes
			WHERE user_id = $1
			  AND (title ILIKE $2 ESCAPE '\' OR content ILIKE $2 ESCAPE '\')
			ORDER BY created_at DESC, id DESC`
		rows, err = conn.QueryContext(ctx, query, userID, likePattern(search))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]types.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepository) Get(ctx context.Context, userID, id string) (types.Note, error) {
	conn, err := r.conn.Get(ctx)
	if err != nil {
		return types.Note{}, err
	}

	const query = `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1 AND user_id = $2`
	note, err := scanNote(conn.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	conn, err := r.conn.Get(ctx)
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

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return types.Note{}, err
	}

	const query = `
		INSERT INTO notes (id, user_id, title, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := conn.ExecContext(
		ctx,
		query,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
		string(tagsJSON),
		note.CreatedAt,
		note.UpdatedAt,
	); err != nil {
		return types.Note{}, err
	}
	return note, nil
}

// Update applies the patch in a single statement so the owner check and the
// write are atomic.
func (r *NoteRepository) Update(ctx context.Context, userID, id string, patch types.NotePatch) (types.Note, error) {
	conn, err := r.conn.Get(ctx)
	if err != nil {
		return types.Note{}, err
	}

	var title, content sql.NullString
	if patch.Title != nil {
		title = sql.NullString{String: *patch.Title, Valid: true}
	}
	if patch.Content != nil {
		content = sql.NullString{String: *patch.Content, Valid: true}
	}
	var tagsArg any
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return types.Note{}, err
		}
		tagsArg = string(tagsJSON)
	}

	const query = `
		UPDATE notes
		SET title = COALESCE($1, title),
			content = COALESCE($2, content),
			tags = COALESCE($3::jsonb, tags),
			updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING ` + noteColumns
	note, err := scanNote(conn.QueryRowContext(
		ctx,
		query,
		title,
		content,
		tagsArg,
		time.Now().UTC(),
		id,
		userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Delete(ctx context.Context, userID, id string) error {
	conn, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	const query = `DELETE FROM notes WHERE id = $1 AND user_id = $2`
	result, err := conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (types.Note, error) {
	var note types.Note
	var tagsJSON []byte
	if err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Content,
		&tagsJSON,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return types.Note{}, err
	}

	_ = json.Unmarshal(tagsJSON, &note.Tags)
	if note.Tags == nil {
		note.Tags = []string{}
	}
	return note, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
