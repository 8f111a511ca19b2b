package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/onchain-chess/internal/archive"
	appcfg "github.com/park285/onchain-chess/internal/config"
	"github.com/park285/onchain-chess/internal/contract"
	"github.com/park285/onchain-chess/internal/msgcat"
	"github.com/park285/onchain-chess/internal/node"
	"github.com/park285/onchain-chess/internal/obslog"
	"github.com/park285/onchain-chess/internal/oracle"
	"github.com/park285/onchain-chess/internal/query"
	"github.com/park285/onchain-chess/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.RedisURL, cfg.KeyPrefix)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}
	defer st.Close()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("messages init error: %v", err)
	}

	opts := node.Options{
		ChainID:       cfg.ChainID,
		GenesisHeight: cfg.GenesisHeight,
		Messages:      msgs,
		Hub:           node.NewHub(64),
	}
	// archive is optional; the chain state in Redis is authoritative
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL, cfg.ChainID)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer repo.Close()
		opts.Archive = repo
	}

	c := contract.New(st, oracle.New(), query.Limits{Default: cfg.DefaultPageLimit, Max: cfg.MaxPageLimit})
	chain, err := node.NewChain(ctx, st, c, opts)
	if err != nil {
		log.Fatalf("chain init error: %v", err)
	}
	go chain.Run(ctx, cfg.BlockInterval)

	api := node.NewServer(chain)
	go func() {
		if err := api.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Error("api_server_stopped", zap.Error(err))
			stop()
		}
	}()

	events := node.NewEventsServer(cfg.EventsAddr, opts.Hub)
	go func() {
		if err := events.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("events_server_stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Info("chessd_started",
		zap.String("chain_id", cfg.ChainID),
		zap.Uint64("height", chain.Height()),
		zap.String("listen", cfg.ListenAddr),
		zap.String("events", cfg.EventsAddr),
		zap.Bool("archive", opts.Archive != nil),
	)

	<-ctx.Done()
	logger.Info("chessd_stopping", zap.Uint64("height", chain.Height()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = events.Shutdown(shutdownCtx)
	_ = api.Shutdown()
}
