package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/word-battle-backend/internal/config"
	"github.com/DoyleJ11/word-battle-backend/internal/game"
	"github.com/DoyleJ11/word-battle-backend/internal/httpapi"
	"github.com/DoyleJ11/word-battle-backend/internal/hub"
	"github.com/DoyleJ11/word-battle-backend/internal/logging"
	"github.com/DoyleJ11/word-battle-backend/internal/matchmaking"
	"github.com/DoyleJ11/word-battle-backend/internal/round"
	"github.com/DoyleJ11/word-battle-backend/internal/store"
	"github.com/DoyleJ11/word-battle-backend/internal/words"
	"github.com/DoyleJ11/word-battle-backend/internal/ws"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:   "word-battle",
		Short: "Real-time two-player word scramble server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Bind(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	supplier := words.NewSupplier(newGenerator(cfg), st,
		words.Options{MaxAttempts: cfg.WordAttempts, HistoryPeriod: cfg.WordHistory}, logger)

	h := hub.NewHub(ctx, logger)
	bindings := &hub.Bindings{}

	orch := round.NewOrchestrator(st, supplier, h, bindings,
		round.Config{CountdownSeconds: cfg.CountdownSeconds, Tick: time.Second}, logger)
	coord := matchmaking.NewCoordinator(st, h, orch, matchmaking.Config{
		JoinGrace:  cfg.JoinGrace,
		MaxRounds:  cfg.MaxRounds,
		Language:   cfg.Language,
		Difficulty: cfg.Difficulty,
	}, logger)
	svc := game.NewService(coord, orch, h, st, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(st, ws.Handler(svc, h, bindings, logger), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		coord.Close()
		orch.Close()
		h.Shutdown()
		return err
	})
	return g.Wait()
}

func openStore(cfg *config.Config) (store.Store, func() error, error) {
	if cfg.Store == "memory" {
		return store.NewMemory(), func() error { return nil }, nil
	}
	pg, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return pg, pg.Close, nil
}

func newGenerator(cfg *config.Config) words.Generator {
	if cfg.WordProvider == "list" {
		return words.NewList(words.DefaultWords)
	}
	return words.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint)
}
