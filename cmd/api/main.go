package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"callsheet.org/internal/audit"
	"callsheet.org/internal/auth"
	"callsheet.org/internal/httpapi"
	"callsheet.org/internal/obs"
	"callsheet.org/internal/ratelimit"
	"callsheet.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("CALLSHEET_AUTH_SECRET")
	if secret == "" {
		log.Fatal("CALLSHEET_AUTH_SECRET is required")
	}

	tokenOpts := []auth.TokenOption{}
	if ttl := envDuration("CALLSHEET_TOKEN_TTL", 0); ttl > 0 {
		tokenOpts = append(tokenOpts, auth.WithTTL(ttl))
	}
	tokens, err := auth.NewTokenService(secret, tokenOpts...)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	var store *pg.Store
	if dsn := os.Getenv("CALLSHEET_PG_DSN"); dsn != "" {
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
	} else {
		log.Fatal("CALLSHEET_PG_DSN is required")
	}

	limiter := ratelimit.New(
		ratelimit.WithWindow(envDuration("CALLSHEET_RATE_WINDOW", 15*time.Minute)),
		ratelimit.WithCap(envInt("CALLSHEET_RATE_CAP", 100)),
	)
	defer limiter.Close()

	recorder := audit.NewRecorder(store.Accounts())
	defer recorder.Flush()

	api := httpapi.New(httpapi.Config{
		Tokens:      tokens,
		Accounts:    store.Accounts(),
		Projects:    store.Projects(),
		Resources:   store.Resources(),
		Limiter:     limiter,
		Recorder:    recorder,
		Probe:       httpapi.ReadyProbe{DB: store.DB()},
		Version:     version,
		Env:         os.Getenv("CALLSHEET_ENV"),
		CORSOrigins: splitOrigins(os.Getenv("CALLSHEET_CORS_ORIGINS")),
	})

	addr := os.Getenv("CALLSHEET_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting callsheet-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
