package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/notekeep/apiserver/internal/mq"
	"github.com/notekeep/apiserver/types"
)

// Tagger fills in tags for newly created notes that have none.
type Tagger struct {
	notes  *NoteService
	ai     *AIService
	logger *slog.Logger
}

func NewTagger(notes *NoteService, ai *AIService, logger *slog.Logger) *Tagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{notes: notes, ai: ai, logger: logger}
}

// Handle processes one note event. It returns an error only for failures
// worth redelivering; bad payloads, missing notes and model failures are
// logged and acknowledged.
func (t *Tagger) Handle(ctx context.Context, msg mq.Message) error {
	var event types.NoteEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.logger.Warn("drop malformed note event", "message_id", msg.ID, "error", err)
		return nil
	}
	if event.Type != types.NoteCreated {
		return nil
	}

	log := t.logger.With("note_id", event.NoteID, "user_id", event.UserID)

	note, err := t.notes.Get(ctx, event.UserID, event.NoteID)
	if err != nil {
		if IsClientError(err) {
			log.Info("skip note event", "error", err)
			return nil
		}
		return err
	}
	if len(note.Tags) > 0 {
		return nil
	}

	tags, err := t.ai.Tags(ctx, note.Title+"\n\n"+note.Content)
	if err != nil {
		if errors.Is(err, ErrUpstream) {
			log.Warn("auto-tag failed", "error", err)
			return nil
		}
		return err
	}
	if len(tags) == 0 {
		return nil
	}

	if _, err := t.notes.Update(ctx, event.UserID, event.NoteID, types.NotePatch{Tags: &tags}); err != nil {
		if IsClientError(err) {
			log.Info("note changed before tagging", "error", err)
			return nil
		}
		return err
	}
	log.Info("note auto-tagged", "tags", tags)
	return nil
}
