// Command server runs the certificate issuance and verification API.
//
// Wiring happens here and only here: main connects the ledger client, the
// document cache, the audit trail, and the HTTP transport, then hands off to
// the service layer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"certledger/internal/audit"
	auditkafka "certledger/internal/audit/kafka"
	auditmemory "certledger/internal/audit/store/memory"
	auditpostgres "certledger/internal/audit/store/postgres"
	"certledger/internal/certificate/handler"
	"certledger/internal/certificate/service"
	"certledger/internal/document"
	"certledger/internal/ledger"
	"certledger/internal/platform/config"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	"certledger/internal/platform/middleware"
	"certledger/internal/platform/postgres"
	"certledger/internal/platform/redis"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// An unreachable node or a missing deployment artifact is fatal at
	// startup. Running without a ledger would only defer the failure to the
	// first request.
	ledgerClient, err := ledger.Dial(startupCtx, ledger.Config{
		RPCURL:       cfg.RPCURL,
		ArtifactPath: cfg.ContractArtifact,
	}, log)
	if err != nil {
		log.Error("ledger connection failed", "error", err.Error())
		os.Exit(1)
	}
	defer ledgerClient.Close()

	submitter, err := ledger.NewSubmitter(ledgerClient, cfg.PrivateKey, log)
	if err != nil {
		log.Error("submitter init failed", "error", err.Error())
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	verifier := ledger.WrapVerifier(ledger.NewVerifier(ledgerClient), redisClient, cfg.VerifyCacheTTL, log)

	docs, err := document.NewCache(cfg.CertDir, document.NewPDFRenderer())
	if err != nil {
		log.Error("document cache init failed", "error", err.Error())
		os.Exit(1)
	}

	auditPub, closeAudit, err := buildAuditPublisher(startupCtx, cfg, log)
	if err != nil {
		log.Error("audit init failed", "error", err.Error())
		os.Exit(1)
	}
	defer closeAudit()

	m := metrics.New()
	svc := service.New(submitter, verifier, docs, auditPub, m, log, cfg.SubmitTimeout)
	h := handler.New(svc, docs, handler.ContractInfo{
		Address: ledgerClient.ContractAddress().Hex(),
		ChainID: ledgerClient.ChainID().String(),
	}, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Timeout(cfg.SubmitTimeout + 30*time.Second))
	router.Get("/healthz", handler.Healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	h.Routes(router)

	srv := httpserver.New(cfg.Addr, otelhttp.NewHandler(router, "certledger"))

	go func() {
		log.Info("server listening",
			"addr", cfg.Addr,
			"signed_mode", submitter.Signed(),
			"chain_id", ledgerClient.ChainID().String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
}

// buildAuditPublisher picks the durable store (postgres when configured,
// in-memory otherwise) and attaches the optional Kafka sink.
func buildAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (*audit.Publisher, func(), error) {
	var store audit.Store = auditmemory.NewStore()
	closers := []func(){}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if db != nil {
		pgStore := auditpostgres.New(db)
		if err := pgStore.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		store = pgStore
		closers = append(closers, func() { db.Close() })
	}

	sink, err := auditkafka.NewSink(cfg.KafkaBrokers, "", log)
	if err != nil {
		return nil, nil, err
	}
	var sinkIface audit.Sink
	if sink != nil {
		sinkIface = sink
		closers = append(closers, sink.Close)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return audit.NewPublisher(store, sinkIface, log), closeAll, nil
}
