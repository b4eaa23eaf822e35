package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/todo_service/internal/config"
	"github.com/Skotchmaster/todo_service/internal/es"
	"github.com/Skotchmaster/todo_service/internal/events"
	"github.com/Skotchmaster/todo_service/internal/httpserver"
	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/middleware/auth"
	"github.com/Skotchmaster/todo_service/internal/mykafka"
	"github.com/Skotchmaster/todo_service/internal/repo"
	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/tokens"
	"github.com/Skotchmaster/todo_service/pkg/db"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Run schema migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer db.Close(gdb)

	if serveMigrate {
		if err := db.Migrate(ctx, gdb); err != nil {
			return err
		}
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	todoSvc := &service.TodoService{Store: repo.New(gdb), Events: publisher}
	if cfg.ESURL != "" {
		index, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex}, log)
		if err != nil {
			return err
		}
		if err := index.EnsureIndex(ctx); err != nil {
			return err
		}
		todoSvc.Index = index
	}

	e := httpserver.New(newDeps(cfg, log, gdb, publisher, todoSvc))

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	return nil
}

func newPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("KAFKA_BROKERS empty, events disabled")
		return events.Nop{}, nil
	}
	return mykafka.NewProducer(cfg.KafkaBrokers)
}

func newDeps(cfg config.Config, log *slog.Logger, gdb *gorm.DB, publisher events.Publisher, todoSvc *service.TodoService) *httpserver.Deps {
	users := repo.New(gdb)
	tok := tokens.NewService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	accounts := &service.AccountService{Users: users, Tokens: tok, Events: publisher}

	return &httpserver.Deps{
		Accounts:    &httpserver.AccountsHTTP{Svc: accounts},
		Todos:       &httpserver.TodosHTTP{Svc: todoSvc},
		Gate:        auth.NewGate(tok, accounts),
		Ready:       func(ctx context.Context) error { return db.Ping(ctx, gdb) },
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
	}
}
