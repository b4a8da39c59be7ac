package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/billlzzz18/bl1nk-realtime/internal/auth"
	"github.com/billlzzz18/bl1nk-realtime/internal/config"
	"github.com/billlzzz18/bl1nk-realtime/internal/handler"
	"github.com/billlzzz18/bl1nk-realtime/internal/hub"
	"github.com/billlzzz18/bl1nk-realtime/internal/pubsub"
	"github.com/billlzzz18/bl1nk-realtime/internal/service"
	pkglog "github.com/billlzzz18/bl1nk-realtime/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "relay"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting relay")

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	wsCfg := hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}
	h := hub.NewHub(wsCfg)
	go h.Run()

	var verifier *auth.Verifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier(cfg.Auth.Secret)
		logger.Info().Msg("identity token verification enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Optional Redis bridge for multi-instance fan-out. Presence and room
	// state stay in-memory; the bridge only relays events.
	var bridge *pubsub.Bridge
	var subscriber *pubsub.Subscriber
	var publisher service.Publisher
	if cfg.Redis.Enabled {
		bridgeClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bridge, err = pubsub.NewBridge(bridgeClient, cfg.Redis.Channel, instanceID)
		if err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("failed to connect redis bridge")
		}
		defer bridgeClient.Close()
		publisher = bridge
		logger.Info().Str("channel", cfg.Redis.Channel).Msg("redis bridge enabled")
	}

	svc := service.NewRelayService(h, verifier, publisher)

	if cfg.Redis.Enabled {
		// Subscriber mode needs its own connection.
		subClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer subClient.Close()
		subscriber = pubsub.NewSubscriber(subClient, cfg.Redis.Channel, svc, instanceID)
		go subscriber.Run(ctx)
	}

	wsHandler := handler.NewWSHandler(h, svc, wsCfg, cfg.Server.CORSOrigin)
	httpHandler := handler.NewHTTPHandler(svc, h.Len)

	router := mux.NewRouter()
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)
	router.HandleFunc("/health", httpHandler.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api/v1/presence", httpHandler.GetPresence).Methods("GET")
	router.HandleFunc("/api/v1/rooms", httpHandler.GetRooms).Methods("GET")
	router.HandleFunc("/api/v1/rooms/{room_id}", httpHandler.GetRoom).Methods("GET")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      pkglog.HTTPMiddleware(*logger)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down relay")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel() // stop the bridge subscriber
		if subscriber != nil {
			<-subscriber.Done()
		}

		h.Stop() // close all WS clients

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("relay stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
