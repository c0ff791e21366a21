package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassins-services/configs"
	gamecfg "github.com/avvvet/assassins-services/internal/gamesvc/config"
	"github.com/avvvet/assassins-services/internal/gamesvc/db"
	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service")
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

// ctlsvc keeps the Redis leaderboard in step with the users collection.
// Live increments happen in gamesvc after each verified elimination; this
// loop repairs whatever those missed.
func main() {
	cfg := gamecfg.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, _, err := db.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer docs.Close(context.Background())

	board, redisClient, err := db.OpenLeaderboard(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if board == nil {
		log.Info("no leaderboard to maintain, exiting")
		return
	}
	defer redisClient.Close()

	users := service.NewUserService(docs, board)

	rebuild := func() {
		runCtx, cancel := context.WithTimeout(ctx, cfg.LeaderboardSyncInterval)
		defer cancel()
		start := time.Now()
		n, err := users.RebuildLeaderboard(runCtx)
		if err != nil {
			log.Errorf("leaderboard rebuild failed: %v", err)
			return
		}
		log.Infof("leaderboard rebuilt from %d users in %s", n, time.Since(start))
	}

	rebuild()
	ticker := time.NewTicker(cfg.LeaderboardSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("%s service (%s) stopped", SERVICE_NAME, instanceId)
			return
		case <-ticker.C:
			rebuild()
		}
	}
}
