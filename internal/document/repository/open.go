package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gogotex/docstore/internal/config"
	"github.com/gogotex/docstore/internal/database"
	"github.com/gogotex/docstore/internal/storage"
	"github.com/gogotex/docstore/pkg/logger"
)

const mongoConnectAttempts = 5

// Open builds the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	switch cfg.Storage.Backend {
	case config.BackendFS:
		logger.Infof("using file backend at %s", cfg.Storage.DataDir)
		return NewFileRepo(afero.NewOsFs(), cfg.Storage.DataDir)

	case config.BackendSQLite:
		logger.Infof("using sqlite backend at %s", cfg.Storage.SQLitePath)
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
			if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return OpenSQLiteRepo(ctx, cfg.Storage.SQLitePath)

	case config.BackendMongo:
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, err
		}
		logger.Infof("using mongo backend %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		return &ownedMongoRepo{MongoRepo: NewMongoRepo(col), client: client}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr(), err)
		}
		logger.Infof("using redis backend at %s (prefix %q)", cfg.Redis.Addr(), cfg.Redis.Prefix)
		return NewRedisRepo(client, cfg.Redis.Prefix), nil

	case config.BackendMinIO:
		s, err := storage.NewMinIOStorage(ctx, &cfg.MinIO)
		if err != nil {
			return nil, err
		}
		logger.Infof("using minio backend %s/%s", cfg.MinIO.Endpoint, cfg.MinIO.Bucket)
		return NewObjectRepo(s), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// ownedMongoRepo disconnects the client it was opened with.
type ownedMongoRepo struct {
	*MongoRepo
	client *mongo.Client
}

func (r *ownedMongoRepo) Close() error {
	return r.client.Disconnect(context.Background())
}
