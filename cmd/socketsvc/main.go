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
	gamecfg "github.com/avvvet/assassins-services/internal/gamesvc/config"
	"github.com/avvvet/assassins-services/internal/nats"

	"github.com/avvvet/assassins-services/internal/socketsvc/broker"
	"github.com/avvvet/assassins-services/internal/socketsvc/routes"
	"github.com/avvvet/assassins-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service")
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg := gamecfg.Load()

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Initialize websocket handler
	s := ws.NewWs()

	// Initialize routes
	routes.InitAuth(cfg.JWTSecret)
	routes.SetRoutes(r, s)

	// Initialize broker, the ws lookups are injected
	b := broker.NewBroker(n.Conn, s.GetConnection, s.GetRoomSockets, s.StoreRoom)
	s.Broker = b // set broker reference for websocket handler logic

	// every socket instance needs every game event
	sub, err := b.Subscribe(comm.GameServiceTopic)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.GameServiceTopic, err)
		os.Exit(1)
	}

	// Create server with timeout settings. No write timeout: sockets are
	// long lived.
	server := &http.Server{
		Addr:        ":" + cfg.SocketPort,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
