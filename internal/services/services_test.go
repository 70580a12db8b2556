package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/notekeep/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUserService() (*UserService, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	return NewUserService(mem.Users(), WithHashCost(bcrypt.MinCost)), mem
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	block   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	reply, err, block := f.reply, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []published
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

var errBoom = errors.New("boom")
