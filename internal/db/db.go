package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/notekeep/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultDBDriver     = "postgres"
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25
	defaultMongoPool    = 25
)

// OpenPostgres opens and verifies a PostgreSQL connection pool.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(defaultDBDriver, cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(defaultConnMaxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLife)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetMaxOpenConns(defaultMaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewPostgres returns a lazily connected PostgreSQL handle.
func NewPostgres(cfg config.Config) *Lazy[*sql.DB] {
	return NewLazy(
		func(ctx context.Context) (*sql.DB, error) {
			return OpenPostgres(ctx, cfg.Database)
		},
		func(db *sql.DB) error { return db.Close() },
		cfg.Store.ConnectTimeout,
	)
}

// OpenMongo connects to MongoDB and returns the configured database.
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(defaultMongoPool).
		SetMaxConnIdleTime(defaultConnMaxIdle)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client.Database(cfg.Database), nil
}

// NewMongo returns a lazily connected MongoDB handle. setup runs once after
// the connection is established, e.g. to create indexes.
func NewMongo(cfg config.Config, setup func(context.Context, *mongo.Database) error) *Lazy[*mongo.Database] {
	return NewLazy(
		func(ctx context.Context) (*mongo.Database, error) {
			database, err := OpenMongo(ctx, cfg.Mongo)
			if err != nil {
				return nil, err
			}
			if setup != nil {
				if err := setup(ctx, database); err != nil {
					_ = database.Client().Disconnect(context.Background())
					return nil, err
				}
			}
			return database, nil
		},
		func(database *mongo.Database) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return database.Client().Disconnect(ctx)
		},
		cfg.Store.ConnectTimeout,
	)
}
