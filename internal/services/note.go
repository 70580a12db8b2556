package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notekeep/apiserver/types"
)

// NoteRepository defines ownership-scoped persistence operations for notes.
type NoteRepository interface {
	List(ctx context.Context, userID, search string) ([]types.Note, error)
	Get(ctx context.Context, userID, id string) (types.Note, error)
	Create(ctx context.Context, note types.Note) (types.Note, error)
	Update(ctx context.Context, userID, id string, patch types.NotePatch) (types.Note, error)
	Delete(ctx context.Context, userID, id string) error
}

// EventPublisher sends a payload to a named channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

const publishTimeout = 5 * time.Second

// NoteService encapsulates note business logic.
type NoteService struct {
	repo    NoteRepository
	events  EventPublisher
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// NoteOption configures a NoteService.
type NoteOption func(*NoteService)

// WithEvents publishes a NoteEvent to channel after every mutation.
func WithEvents(pub EventPublisher, channel string) NoteOption {
	return func(s *NoteService) {
		s.events = pub
		s.channel = channel
	}
}

func WithLogger(logger *slog.Logger) NoteOption {
	return func(s *NoteService) {
		s.logger = logger
	}
}

func NewNoteService(repo NoteRepository, opts ...NoteOption) *NoteService {
	s := &NoteService{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the user's notes, newest first. A non-empty query keeps only
// notes whose title or content contains it, ignoring case.
func (s *NoteService) List(ctx context.Context, userID, query string) ([]types.Note, error) {
	notes, err := s.repo.List(ctx, userID, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []types.Note{}
	}
	return notes, nil
}

func (s *NoteService) Create(ctx context.Context, userID, title, content string, tags []string) (types.Note, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return types.Note{}, invalid("title is required")
	}
	if content == "" {
		return types.Note{}, invalid("content is required")
	}

	note, err := s.repo.Create(ctx, types.Note{
		UserID:  userID,
		Title:   title,
		Content: content,
		Tags:    CleanTags(tags),
	})
	if err != nil {
		return types.Note{}, err
	}

	s.publish(ctx, types.NoteCreated, note)
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, userID, noteID string) (types.Note, error) {
	id, err := parseID(noteID)
	if err != nil {
		return types.Note{}, err
	}
	return s.repo.Get(ctx, userID, id)
}

// Update applies the provided fields of patch. Absent fields are unchanged.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, patch types.NotePatch) (types.Note, error) {
	id, err := parseID(noteID)
	if err != nil {
		return types.Note{}, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return types.Note{}, invalid("title must not be empty")
		}
		patch.Title = &title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return types.Note{}, invalid("content must not be empty")
		}
		patch.Content = &content
	}
	if patch.Tags != nil {
		tags := CleanTags(*patch.Tags)
		patch.Tags = &tags
	}

	note, err := s.repo.Update(ctx, userID, id, patch)
	if err != nil {
		return types.Note{}, err
	}

	s.publish(ctx, types.NoteUpdated, note)
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	id, err := parseID(noteID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publish(ctx, types.NoteDeleted, types.Note{ID: id, UserID: userID})
	return nil
}

func (s *NoteService) publish(ctx context.Context, kind types.NoteEventType, note types.Note) {
	if s.events == nil {
		return
	}

	event := types.NoteEvent{
		Type:       kind,
		NoteID:     note.ID,
		UserID:     note.UserID,
		OccurredAt: s.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("encode note event", "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{"type": string(kind)}
	if _, err := s.events.Publish(pubCtx, s.channel, data, attrs); err != nil {
		s.logger.Warn("publish note event failed",
			"type", kind,
			"note_id", note.ID,
			"error", err,
		)
	}
}

// CleanTags trims tags and drops blank ones. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnauthorized)
}
