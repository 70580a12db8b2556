package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/notekeep/apiserver/config"
	"github.com/notekeep/apiserver/internal/db"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/internal/store"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Backend is the persistence layer selected by config.
type Backend struct {
	Users services.UserRepository
	Notes services.NoteRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping reports whether the database is reachable, connecting on first use.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend builds the repositories for cfg.Store.Backend. Database
// connections are established lazily on first use.
func OpenBackend(cfg config.Config) (*Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case config.StoreBackendPostgres:
		conn := db.NewPostgres(cfg)
		return &Backend{
			Users: store.NewUserRepository(conn),
			Notes: store.NewNoteRepository(conn),
			ping: func(ctx context.Context) error {
				sqlDB, err := conn.Get(ctx)
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			close: conn.Close,
		}, nil
	case config.StoreBackendMongo:
		conn := db.NewMongo(cfg, store.EnsureMongoIndexes)
		return &Backend{
			Users: store.NewMongoUserRepository(conn),
			Notes: store.NewMongoNoteRepository(conn),
			ping: func(ctx context.Context) error {
				database, err := conn.Get(ctx)
				if err != nil {
					return err
				}
				return database.Client().Ping(ctx, readpref.Primary())
			},
			close: conn.Close,
		}, nil
	case config.StoreBackendMemory:
		mem := store.NewMemoryStore()
		return &Backend{
			Users: mem.Users(),
			Notes: mem.Notes(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
