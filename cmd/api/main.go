package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/emilythestrangee/forum/backend/internal/cache"
	"github.com/emilythestrangee/forum/backend/internal/config"
	"github.com/emilythestrangee/forum/backend/internal/database"
	"github.com/emilythestrangee/forum/backend/internal/event"
	"github.com/emilythestrangee/forum/backend/internal/handlers"
	"github.com/emilythestrangee/forum/backend/internal/logging"
	"github.com/emilythestrangee/forum/backend/internal/metrics"
	"github.com/emilythestrangee/forum/backend/internal/platform/retry"
	"github.com/emilythestrangee/forum/backend/internal/server"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

func setupRanking(ctx context.Context, cfg *config.Config, db database.Service) (*redis.Client, *cache.ScoreCache) {
	client, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	ranking := cache.NewScoreCache(client)
	scores, err := database.PostScores(ctx, db.GetDB())
	if err != nil {
		log.WithError(err).Fatal("Failed to load post scores")
	}
	if err := ranking.WarmPosts(ctx, scores); err != nil {
		log.WithError(err).Fatal("Failed to warm post ranking")
	}
	log.WithField("posts", len(scores)).Info("Post ranking warmed")

	return client, ranking
}

func runGracefulShutdown(srv *http.Server, closers ...func() error) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}

		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.WithError(err).Error("Failed to release resource")
			}
		}

		close(done)
	}()

	return done
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	log.WithFields(log.Fields{"env": cfg.AppEnv, "port": cfg.Port}).Info("Application starting")

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []voting.Option{
		voting.WithMetrics(metrics.NewVoteMetrics(registry)),
		voting.WithRetryPolicy(retry.Policy{
			MaxAttempts:    cfg.VoteMaxAttempts,
			InitialBackoff: cfg.VoteRetryBackoff,
			MaxBackoff:     voting.DefaultRetryPolicy.MaxBackoff,
		}),
	}
	closers := []func() error{db.Close}

	// Ranking stays a nil interface unless Redis is configured
	deps := handlers.Deps{
		DB:        db.GetDB(),
		JWTSecret: []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
	}
	if cfg.RedisURL != "" {
		client, ranking := setupRanking(context.Background(), cfg, db)
		closers = append(closers, client.Close)
		opts = append(opts, voting.WithScoreCache(ranking))
		deps.Ranking = ranking
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append([]func() error{publisher.Close}, closers...)
		opts = append(opts, voting.WithPublisher(publisher))
		log.WithField("topic", cfg.KafkaTopic).Info("Publishing vote events to Kafka")
	}

	deps.Votes = voting.NewService(database.NewVoteStore(db.GetDB()), opts...)

	srv := server.NewServer(cfg, db, handlers.NewHandler(deps), registry)
	done := runGracefulShutdown(srv, closers...)

	log.WithField("addr", srv.Addr).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server error")
	}

	<-done
	log.Info("Graceful shutdown complete")
}
