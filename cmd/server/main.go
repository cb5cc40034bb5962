package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fastpay-sz/payment-orchestrator/internal/config"
	"github.com/fastpay-sz/payment-orchestrator/internal/database"
	"github.com/fastpay-sz/payment-orchestrator/internal/handler"
	"github.com/fastpay-sz/payment-orchestrator/internal/middleware"
	"github.com/fastpay-sz/payment-orchestrator/internal/orchestrator"
	"github.com/fastpay-sz/payment-orchestrator/internal/qr"
	"github.com/fastpay-sz/payment-orchestrator/internal/rail"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
	"github.com/fastpay-sz/payment-orchestrator/internal/risk"
	"github.com/fastpay-sz/payment-orchestrator/internal/service"
)

type stores struct {
	txns interface {
		orchestrator.TransactionStore
		risk.HistoryLookup
		service.Reporter
	}
	ledger    service.LedgerReader
	ledgerW   orchestrator.LedgerStore
	tokens    qr.TokenStore
	merchants service.MerchantResolver
	health    *handler.HealthHandler
	close     func()
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	if cfg.MigrateDown {
		if err := database.RollbackMigrations(cfg.DatabaseURL()); err != nil {
			log.Fatal().Err(err).Msg("rollback failed")
		}
		return
	}

	st, err := buildStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer st.close()

	adapters := buildAdapters(cfg)
	scorer := risk.NewScorer(cfg.Risk, st.txns)
	selector := rail.NewSelector(cfg.Risk.ChallengePreferConservative)
	orch := orchestrator.New(scorer, selector, adapters, st.txns, st.ledgerW, cfg.RailTimeout, cfg.RailRetries)
	registry := qr.NewRegistry(st.tokens)
	svc := service.NewPaymentService(orch, st.txns, st.ledger, st.merchants, registry, st.txns, cfg.Risk.SupportedCurrencies)

	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	router.GET("/health", st.health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	paymentHandler := handler.NewPaymentHandler(svc)
	ledgerHandler := handler.NewLedgerHandler(svc)
	analyticsHandler := handler.NewAnalyticsHandler(svc)

	api := router.Group("/api/v1")
	{
		api.POST("/payments", paymentHandler.Initiate)
		api.GET("/payments/:id", paymentHandler.GetStatus)
		api.GET("/ledger", ledgerHandler.List)
		api.GET("/analytics/summary", analyticsHandler.Summary)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func buildStores(cfg *config.Config) (*stores, error) {
	if cfg.Store == "memory" {
		txns := repository.NewMemoryTransactionStore()
		ledger := repository.NewMemoryLedgerStore()
		tokens := repository.NewMemoryTokenStore()
		merchants := repository.NewMemoryMerchantResolver()
		if err := database.SeedMemory(context.Background(), merchants, tokens); err != nil {
			return nil, err
		}
		return &stores{
			txns:      txns,
			ledger:    ledger,
			ledgerW:   ledger,
			tokens:    tokens,
			merchants: merchants,
			health:    handler.NewHealthHandler(nil),
			close:     func() {},
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
			pool.Close()
			return nil, err
		}
		if err := database.SeedData(context.Background(), pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	ledger := repository.NewLedgerRepository(pool)
	return &stores{
		txns:      repository.NewTransactionRepository(pool),
		ledger:    ledger,
		ledgerW:   ledger,
		tokens:    repository.NewQRTokenRepository(pool),
		merchants: repository.NewMerchantRepository(pool),
		health:    handler.NewHealthHandler(pool),
		close:     pool.Close,
	}, nil
}

func buildAdapters(cfg *config.Config) []rail.Adapter {
	adapters := make([]rail.Adapter, 0, len(cfg.Rails))
	for _, rc := range cfg.Rails {
		switch rc.ID {
		case "eswatini_switch":
			adapters = append(adapters, rail.NewEswatiniSwitch(rc))
		case "visa_direct":
			adapters = append(adapters, rail.NewVisaDirect(rc))
		default:
			log.Warn().Str("rail", rc.ID).Msg("no adapter registered for configured rail")
		}
	}
	return adapters
}
