package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/docstore/firestorestore"
	"github.com/anonto42/ideafeed/backend/internal/docstore/mongostore"
	"github.com/anonto42/ideafeed/backend/internal/docstore/pgstore"
	"github.com/anonto42/ideafeed/backend/pkg/firebase"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the document store selected by STORE_BACKEND
type DB struct {
	Store docstore.Store
	// Mongo is set for the mongo backend; the change-stream watcher needs it.
	Mongo *mongo.Database
}

// InitDB opens the configured backend and verifies the connection
func InitDB(ctx context.Context, cfg *Config, logger *slog.Logger) (*DB, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		logger.Info("using in-memory document store")
		return &DB{Store: docstore.NewMemoryStore()}, nil

	case BackendMongo:
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		logger.Info("connected to MongoDB", "database", cfg.MongoDatabase)
		db := client.Database(cfg.MongoDatabase)
		return &DB{Store: mongostore.New(db), Mongo: db}, nil

	case BackendFirestore:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to Firestore")
		return &DB{Store: firestorestore.New(app.Firestore)}, nil

	case BackendPostgres:
		gdb, err := initPostgres(cfg.PostgresConnStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store := pgstore.New(gdb)
		if err := store.Migrate(ctx); err != nil {
			closeGorm(gdb)
			return nil, err
		}
		logger.Info("connected to PostgreSQL")
		return &DB{Store: store}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// initPostgres initializes the PostgreSQL connection using GORM
func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// initMongo initializes the MongoDB connection
func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return client, nil
}

// InitRedis connects to Redis. An empty url means Redis is not configured and
// returns a nil client.
func InitRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// CloseDB closes the document store
func (db *DB) CloseDB(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Store.Close(ctx); err != nil {
		logger.Error("error closing document store", "error", err)
		return
	}
	logger.Info("document store closed")
}
