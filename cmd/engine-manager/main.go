// cmd/engine-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"retention-engine/internal/common/config"
	"retention-engine/internal/common/database"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/common/observability"
	"retention-engine/internal/engine"
	"retention-engine/internal/engine/bulk"
	"retention-engine/internal/models"
	"retention-engine/internal/notify"
	"retention-engine/internal/riskapi"
	"retention-engine/internal/source"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("engine-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Population Source ---
	var populationSource source.Source
	switch cfg.Population.Source {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			// Test the connection with context
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
		populationSource = source.NewPostgresSource(pg.DB, log)

	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		populationSource = source.NewElasticsearchSource(esClient.Client, cfg.Population.Elasticsearch.Index, cfg.Population.Elasticsearch.MaxSize, log)

	case "file":
		populationSource = source.NewFileSource(cfg.Population.File.Path, log)

	default:
		zapLog.Fatal("unknown population source", zap.String("source", cfg.Population.Source))
	}

	// --- Init Risk API Client ---
	clientOpts := []riskapi.ClientOption{}
	if cfg.RiskAPI.APIKey != "" {
		clientOpts = append(clientOpts, riskapi.WithAPIKey(cfg.RiskAPI.APIKey))
	}

	if cfg.RiskAPI.CacheTTL > 0 {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
		clientOpts = append(clientOpts, riskapi.WithCache(redis.Client, cfg.RiskAPI.GetCacheTTL()))
	}

	apiClient := riskapi.NewClient(cfg.RiskAPI.BaseURL, cfg.RiskAPI.GetTimeout(), log, clientOpts...)

	// --- Init SNS Publisher (optional) ---
	var publisher *notify.SNSPublisher
	if cfg.Notifications.SNS.Enabled {
		publisher, err = notify.NewSNSPublisher(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN, log)
		if err != nil {
			zapLog.Fatal("sns publisher failed", zap.Error(err))
		}
		zapLog.Info("SNS publisher initialized")
	}

	// --- Init Engine ---
	eng := engine.New(populationSource, apiClient, engine.Config{
		DisplayMode:  models.DisplayMode(cfg.Engine.DisplayMode),
		PreselectTop: cfg.Engine.PreselectTop,
	}, log)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"state":  eng.RunState().String(),
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Cooperative Cancellation ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		zapLog.Info("Shutdown signal received, cancelling active run...")
		eng.CancelRun()
	}()

	// --- Run Analysis ---
	cohortSize, err := eng.RunAnalysis(ctx)
	if err != nil {
		zapLog.Fatal("analysis failed", zap.Error(err))
	}
	zapLog.Info("Analysis complete",
		zap.Int("cohortSize", cohortSize),
		zap.Int("selected", len(eng.Selection())),
	)

	agg := eng.Metrics()
	zapLog.Info("Cohort aggregates",
		zap.Float64("totalPotentialGain", agg.TotalPotentialGain),
		zap.Float64("selectedPotentialGain", agg.SelectedPotentialGain),
	)

	// --- Apply Treatments to Selection ---
	summary, err := eng.ApplyToSelection(ctx, nil, func(p bulk.Progress) {
		if p.CurrentLabel != "" {
			zapLog.Info("Bulk run progress",
				zap.Int("completed", p.Completed),
				zap.Int("total", p.Total),
				zap.String("current", p.CurrentLabel),
			)
		}
	})
	if err != nil {
		zapLog.Fatal("bulk run failed", zap.Error(err))
	}

	zapLog.Info("Bulk run finished",
		zap.Int("success", summary.SuccessCount),
		zap.Int("failure", summary.FailureCount),
		zap.Bool("cancelled", summary.Cancelled),
	)

	agg = eng.Metrics()
	zapLog.Info("Post-run aggregates",
		zap.Int("appliedCount", agg.AppliedCount),
		zap.Float64("realizedGain", agg.RealizedGain),
	)

	// --- Publish Run Summary ---
	if publisher != nil {
		runID := ""
		if run := eng.RunProgress(); run != nil {
			runID = run.ID
		}
		if err := publisher.PublishRunSummary(ctx, runID, summary); err != nil {
			zapLog.Error("run summary publish failed", zap.Error(err))
		}
	}

	zapLog.Info("Engine manager finished")
}
