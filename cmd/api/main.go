package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"retroboard/api/internal/app"
	"retroboard/api/internal/broadcast"
	"retroboard/api/internal/config"
	"retroboard/api/internal/export"
	"retroboard/api/internal/quota"
	"retroboard/api/internal/search"
	"retroboard/api/internal/session"
	"retroboard/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	presence, err := session.NewRedisStore(cfg.RedisURL, cfg.HeartbeatTTL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer presence.Close()

	gate, err := quota.NewGate(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis quota connection failed: %v", err)
	}
	defer gate.Close()

	hub := broadcast.NewHub(nil)
	bridge, err := broadcast.NewRedisBridge(cfg.RedisURL, hub)
	if err != nil {
		log.Fatalf("redis broadcast connection failed: %v", err)
	}
	defer bridge.Close()
	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil {
			log.Printf("broadcast bridge stopped: %v", err)
		}
	}()

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var archive *export.Archive
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archive, err = export.NewArchive(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL)
		if err != nil {
			log.Fatalf("archive storage connection failed: %v", err)
		}
		log.Printf("Board archive storage enabled (bucket %s)", cfg.ArchiveBucket)
	}
	exporter := export.NewService(dataStore, archive)

	service := app.New(cfg, dataStore, presence, gate, bridge, searchService, exporter)

	httpServer := app.NewHTTPServer(service, hub, cfg.CORSOrigin)
	// No WriteTimeout: the events endpoint holds its connection open.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Retroboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
