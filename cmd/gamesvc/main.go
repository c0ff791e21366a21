package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassins-services/configs"
	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/gamesvc/broker"
	gamecfg "github.com/avvvet/assassins-services/internal/gamesvc/config"
	"github.com/avvvet/assassins-services/internal/gamesvc/db"
	handlers "github.com/avvvet/assassins-services/internal/gamesvc/handlers"
	"github.com/avvvet/assassins-services/internal/gamesvc/service"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
	nats "github.com/avvvet/assassins-services/internal/nats"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service")
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg := gamecfg.Load()
	ctx := context.Background()

	// document store
	docs, mongoDB, err := db.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer docs.Close(context.Background())
	log.Infof("%s store ready", cfg.StoreDriver)

	// optional redis leaderboard projection
	var leaderboard service.Leaderboard
	board, redisClient, err := db.OpenLeaderboard(ctx, cfg)
	if err != nil {
		log.Warnf("leaderboard disabled: %v", err)
	} else if board != nil {
		leaderboard = board
		defer redisClient.Close()
	}

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// the broker is the notifier for every service
	broker := broker.NewBroker(n.Conn)

	ring := service.NewRingAssembler(nil)
	services := handlers.Services{
		Users:         service.NewUserService(docs, leaderboard),
		Games:         service.NewGameService(docs, ring, broker),
		Claims:        service.NewEliminationService(docs, broker, leaderboard),
		Disputes:      service.NewDisputeService(docs, broker),
		Announcements: service.NewAnnouncementService(docs, broker),
	}

	if mongoDB != nil {
		files, err := store.NewEvidenceStore(mongoDB)
		if err != nil {
			log.Fatalf("Failed to open evidence bucket: %v", err)
		}
		services.Evidence = service.NewEvidenceService(docs, files, cfg.EvidenceMaxBytes)
	} else {
		log.Warnf("evidence upload disabled for store driver %s", cfg.StoreDriver)
	}

	broker.Attach(services.Games, services.Claims, services.Disputes)

	// socket actions are shared between gamesvc instances
	sub, err := broker.QueueSubscribSignal(comm.SocketServiceTopic, SERVICE_NAME+"_service")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cfg.GamePort, services)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.GamePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sub.Unsubscribe(); err != nil {
		log.Warnf("unsubscribe: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
