// cmd/worker-manager/main.go
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

	"visabuddy-engine/internal/catalog"
	"visabuddy-engine/internal/collaborator"
	"visabuddy-engine/internal/common/camunda"
	"visabuddy-engine/internal/common/config"
	"visabuddy-engine/internal/common/database"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/observability"

	// Checklist Workers (5)
	bc "visabuddy-engine/internal/workers/checklist/build-context"
	ec "visabuddy-engine/internal/workers/checklist/enrich-checklist"
	pc "visabuddy-engine/internal/workers/checklist/prioritize-checklist"
	rr "visabuddy-engine/internal/workers/checklist/resolve-rules"
	vc "visabuddy-engine/internal/workers/checklist/validate-checklist"

	// Verification Workers (1)
	vd "visabuddy-engine/internal/workers/verification/verify-document"
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

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	// Construction probes broker topology, so a failing broker keeps us in
	// the retry loop instead of registering workers against a dead gateway.
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
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

	// --- Init Redis with retry ---
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

	// --- Shared Services ---
	catalogStore := catalog.NewStore(pg, log, time.Duration(cfg.Catalog.QueryTimeout)*time.Millisecond)
	cachedCatalog := catalog.NewCachedStore(catalogStore, redis, log, time.Duration(cfg.Catalog.CacheTTL)*time.Second)

	collabClient := collaborator.NewClient(cfg.Collaborator, log)

	zapLog.Info("Catalog and collaborator clients initialized")

	var workers []*camunda.Worker

	// --- START: Register ALL 6 Workers ---

	// --- 1. Checklist Workers (5) ---
	if cfg.Workers[bc.TaskType].Enabled {
		handler := bc.NewHandler(
			&bc.Config{
				Timeout:             time.Duration(cfg.Workers[bc.TaskType].Timeout) * time.Millisecond,
				FinancialBorderline: cfg.Engine.Thresholds.FinancialBorderline,
				FinancialSufficient: cfg.Engine.Thresholds.FinancialSufficient,
				FinancialStrong:     cfg.Engine.Thresholds.FinancialStrong,
				TiesModerate:        cfg.Engine.Thresholds.TiesModerate,
				TiesStrong:          cfg.Engine.Thresholds.TiesStrong,
				FundsPerDay:         cfg.Engine.FundsPerDay,
				DefaultFundsPerDay:  cfg.Engine.DefaultFundsPerDay,
				MinStayDays:         cfg.Engine.MinStayDays,
			},
			log,
		)
		workers = append(workers, startWorker(zeebeClient, bc.TaskType, cfg.Workers[bc.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[rr.TaskType].Enabled {
		handler, err := rr.NewHandler(
			&rr.Config{
				Timeout: time.Duration(cfg.Workers[rr.TaskType].Timeout) * time.Millisecond,
			},
			cachedCatalog, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create resolve-rules handler", zap.Error(err))
		}
		workers = append(workers, startWorker(zeebeClient, rr.TaskType, cfg.Workers[rr.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[ec.TaskType].Enabled {
		handler := ec.NewHandler(
			&ec.Config{
				Timeout: time.Duration(cfg.Workers[ec.TaskType].Timeout) * time.Millisecond,
			},
			collabClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, ec.TaskType, cfg.Workers[ec.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[vc.TaskType].Enabled {
		handler := vc.NewHandler(
			&vc.Config{
				Timeout: time.Duration(cfg.Workers[vc.TaskType].Timeout) * time.Millisecond,
			},
			log,
		)
		workers = append(workers, startWorker(zeebeClient, vc.TaskType, cfg.Workers[vc.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[pc.TaskType].Enabled {
		handler := pc.NewHandler(
			&pc.Config{
				Timeout: time.Duration(cfg.Workers[pc.TaskType].Timeout) * time.Millisecond,
				Boost:   2,
			},
			log,
		)
		workers = append(workers, startWorker(zeebeClient, pc.TaskType, cfg.Workers[pc.TaskType], handler.Handle, zapLog))
	}

	// --- 2. Verification Workers (1) ---
	if cfg.Workers[vd.TaskType].Enabled {
		handler := vd.NewHandler(
			&vd.Config{
				Timeout:           time.Duration(cfg.Workers[vd.TaskType].Timeout) * time.Millisecond,
				MaxDocumentChars:  8000,
				MaxShortReason:    200,
				MaxNotes:          500,
				MaxTechnicalNotes: 1000,
			},
			collabClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, vd.TaskType, cfg.Workers[vd.TaskType], handler.Handle, zapLog))
	}

	zapLog.Info("All workers registered successfully", zap.Int("count", len(workers)))

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
			if err := zeebeClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "degraded",
					"error":  err.Error(),
					"time":   time.Now().Format(time.RFC3339),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		if w != nil {
			w.Stop()
		}
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client *camunda.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.JobHandlerFunc, log *zap.Logger) *camunda.Worker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	return camunda.NewWorker(
		client.GetClient(),
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		handlerFunc,
		log,
	)
}
