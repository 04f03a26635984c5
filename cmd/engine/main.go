package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/riskgraph/internal/alerts"
	"github.com/rawblock/riskgraph/internal/api"
	"github.com/rawblock/riskgraph/internal/compliance"
	"github.com/rawblock/riskgraph/internal/config"
	"github.com/rawblock/riskgraph/internal/db"
	"github.com/rawblock/riskgraph/internal/engine"
	"github.com/rawblock/riskgraph/internal/mirror"
	"github.com/rawblock/riskgraph/internal/stream"
)

func main() {
	log.Println("Starting RiskGraph Transaction Risk Engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── Compliance audit trail ─────────────────────────────────────────
	// The HMAC secret signs every audit entry. Without AUDIT_SECRET a random
	// per-process secret is used, so signatures do not survive a restart.
	// ────────────────────────────────────────────────────────────────────
	secret := []byte(cfg.AuditSecret)
	if len(secret) == 0 {
		log.Println("[SECURITY WARNING] AUDIT_SECRET is not set; audit signatures use a per-process random secret.")
		if secret, err = compliance.RandomSecret(); err != nil {
			log.Fatalf("FATAL: cannot generate audit secret: %v", err)
		}
	}
	evaluator, err := compliance.NewEvaluator(secret)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	opts := []engine.Option{}
	if fws := compliance.ParseFrameworks(cfg.DefaultFrameworks); len(fws) > 0 {
		opts = append(opts, engine.WithDefaultFrameworks(fws))
	}

	// Optional sinks: each one is best effort and may be absent.
	var persisted api.Store
	if cfg.DatabaseURL != "" {
		store, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
		} else {
			defer store.Close()
			if err := store.InitSchema(ctx); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			evaluator.AddAuditHook(store.AuditHook)
			opts = append(opts, engine.WithVerdictPublisher(store))
			persisted = store
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := stream.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Printf("Warning: Kafka unavailable, verdicts will not be streamed: %v", err)
		} else {
			defer producer.Close()
			evaluator.AddAuditHook(producer.AuditHook)
			opts = append(opts, engine.WithVerdictPublisher(producer))
		}
	}

	if cfg.Neo4jURI != "" {
		m, err := mirror.Connect(ctx, mirror.Options{
			URI:      cfg.Neo4jURI,
			Database: cfg.Neo4jDatabase,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
		})
		if err != nil {
			log.Printf("Warning: Neo4j mirror disabled: %v", err)
		} else {
			defer m.Close(context.Background())
			opts = append(opts, engine.WithTransferObserver(m), engine.WithVerdictPublisher(m))
		}
	}

	// Setup WebSocket Hub and alerting
	wsHub := api.NewHub(cfg.AllowedOrigins)
	go wsHub.Run()

	alertMgr := alerts.NewManager(cfg.AlertMinLevel, api.BroadcastAlert(wsHub))
	for _, wh := range cfg.AlertWebhooks {
		alertMgr.RegisterWebhook(wh.Name, wh.URL, cfg.AlertMinLevel, nil)
	}
	opts = append(opts, engine.WithVerdictPublisher(alertMgr))

	eng := engine.New(evaluator, opts...)

	r, limiter := api.SetupRouter(eng, alertMgr, persisted, wsHub, api.Options{
		AuthToken:       cfg.AuthToken,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		RateLimitBurst:  cfg.RateLimitBurst,
		Release:         cfg.Release(),
	})
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Engine running on :%s (frameworks: %v)", cfg.Port, eng.DefaultFrameworks())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
	alertMgr.Wait()
}
