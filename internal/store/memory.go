package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notekeep/apiserver/types"
)

// MemoryStore keeps users and notes in process memory. It backs local
// development and tests; data does not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]types.User
	notes map[string]types.Note
	now   func() time.Time
	last  time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]types.User),
		notes: make(map[string]types.Note),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository view of the store.
func (m *MemoryStore) Users() *MemoryUserRepository {
	return &MemoryUserRepository{m: m}
}

// Notes returns the note repository view of the store.
func (m *MemoryStore) Notes() *MemoryNoteRepository {
	return &MemoryNoteRepository{m: m}
}

// tick returns a strictly increasing timestamp so that newest-first ordering
// is stable. Callers must hold the write lock.
func (m *MemoryStore) tick() time.Time {
	now := m.now()
	if !now.After(m.last) {
		now = m.last.Add(time.Nanosecond)
	}
	m.last = now
	return now
}

type MemoryUserRepository struct {
	m *MemoryStore
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, user := range r.m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.users {
		if existing.Email == user.Email {
			return types.User{}, ErrConflict
		}
	}

	now := r.m.tick()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.m.users[user.ID] = user
	return user, nil
}

type MemoryNoteRepository struct {
	m *MemoryStore
}

func (r *MemoryNoteRepository) List(ctx context.Context, userID, search string) ([]types.Note, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	notes := make([]types.Note, 0)
	for _, note := range r.m.notes {
		if note.UserID != userID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(note.Title), search) &&
			!strings.Contains(strings.ToLower(note.Content), search) {
			continue
		}
		notes = append(notes, cloneNote(note))
	}

	slices.SortFunc(notes, func(a, b types.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return notes, nil
}

func (r *MemoryNoteRepository) Get(ctx context.Context, userID, id string) (types.Note, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	note, ok := r.m.notes[id]
	if !ok || note.UserID != userID {
		return types.Note{}, ErrNotFound
	}
	return cloneNote(note), nil
}

func (r *MemoryNoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.tick()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now
	note = cloneNote(note)
	r.m.notes[note.ID] = note
	return cloneNote(note), nil
}

func (r *MemoryNoteRepository) Update(ctx context.Context, userID, id string, patch types.NotePatch) (types.Note, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	note, ok := r.m.notes[id]
	if !ok || note.UserID != userID {
		return types.Note{}, ErrNotFound
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Tags != nil {
		note.Tags = slices.Clone(*patch.Tags)
	}
	note.UpdatedAt = r.m.tick()
	note = cloneNote(note)
	r.m.notes[id] = note
	return cloneNote(note), nil
}

func (r *MemoryNoteRepository) Delete(ctx context.Context, userID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	note, ok := r.m.notes[id]
	if !ok || note.UserID != userID {
		return ErrNotFound
	}
	delete(r.m.notes, id)
	return nil
}

func cloneNote(note types.Note) types.Note {
	if note.Tags == nil {
		note.Tags = []string{}
	} else {
		note.Tags = slices.Clone(note.Tags)
	}
	return note
}
