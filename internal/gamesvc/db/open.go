package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	mongodb "github.com/avvvet/assassins-services/internal/db"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/config"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

// OpenStore opens the document store named by cfg.StoreDriver. The mongo
// database is returned too (nil for other drivers) since evidence files
// live in GridFS next to the documents.
func OpenStore(ctx context.Context, cfg config.Config) (docstore.Store, *mongo.Database, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, database, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.CreateIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return docstore.NewMongoStore(client, database, cfg.Retry), database, nil

	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		pg := docstore.NewPostgresStore(pool, cfg.Retry)
		if err := pg.Migrate(ctx); err != nil {
			ClosePool()
			return nil, nil, err
		}
		return pg, nil, nil

	case config.DriverMemory:
		log.Warn("using the in-memory store, all data is lost on restart")
		return docstore.NewMemoryStore(cfg.Retry), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// OpenLeaderboard connects the Redis ranking projection. It returns nil
// when REDIS_ADDR is unset; rankings are then computed from the users
// collection.
func OpenLeaderboard(ctx context.Context, cfg config.Config) (*store.LeaderboardStore, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, leaderboard reads fall back to the users collection")
		return nil, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	board := store.NewLeaderboardStore(client)
	if err := board.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return board, client, nil
}
