package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/repositories/sqlite"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns their lifecycle, so deferred cleanups
// always run before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Durable store & search index
	identityStore, messageStore, closeStore, err := openStore(config, log)
	if err != nil {
		return err
	}
	defer closeStore()

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	moderator, err := newModerator(config, log)
	if err != nil {
		return err
	}

	// 3. Services & routing engine
	stats := observability.NewRelay()
	messageService := services.NewMessageService(messageStore, index, moderator, stats, config.MaxContentLength, log)
	engine := runtime.NewEngine(
		services.NewIdentityService(identityStore, log),
		services.NewHistoryService(messageStore, config.HistoryLimit),
		messageService,
		stats, config.BufferSize, config.StoreTimeout, log)
	registry := runtime.NewRegistry()
	admin := services.NewAdminService(identityStore, messageStore, messageService, index, engine, log)

	// 4. Supervision, outliving the transports so late Disconnects are still routed
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewRoutingWorker(engine, engine.Commands(), stats, log),
		workers.NewEventFanout(log, registry, engine.Deliveries(), stats, config.SinkTimeout),
		workers.NewHealthMonitoringWorker(log, stats, config.MetricInterval),
	)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(context.Background())
	}()

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Websocket & admin servers
	mux := http.NewServeMux()
	wsHandler := ws.NewHandler(ctx, engine, registry, config.ConnectionBufferSize, config.WriteTimeout, log)
	mux.Handle("/ws", wsHandler)
	wsAddress := fmt.Sprintf("%s:%d", config.Host, config.WSPort)
	httpServer := &http.Server{Addr: wsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	listener, err := net.Listen("tcp", adminAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
	}
	grpcServer, healthServer := server.NewGRPCServer(server.NewAdminServer(admin, log), log)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting websocket server", "address", wsAddress)
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting admin gRPC server", "address", adminAddress)
		if err := grpcServer.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("admin gRPC server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
		log.Error("Server failed, shutting down", "error", serveErr)
		stop()
	}

	// 8. Final Cleanup: transports first, then open sockets, then workers, then in-flight writes
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Websocket server shutdown", "error", err)
	}
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		log.Warn("Websockets still open after shutdown timeout", "error", err)
	}
	sup.Stop()
	<-supervised
	engine.Wait()
	log.Info("Relay stopped cleanly", "stats", stats.Snapshot())

	return serveErr
}

// openStore returns the stores selected by STORE_DRIVER and their cleanup.
func openStore(config internal.Config, log *slog.Logger) (contract.IdentityStore, contract.MessageStore, func(), error) {
	if config.StoreDriver == internal.SQLiteDriver {
		store, err := sqlite.Open(config.SQLiteFilepath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite opening failed: %w", err)
		}
		return store, store, func() {
			log.Info("Closing SQLite...")
			_ = store.Close()
		}, nil
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database opening failed: %w", err)
	}
	return repositories.NewIdentityRepository(db), repositories.NewMessageRepository(db, log), func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}, nil
}

// newModerator builds the censor from CENSORED_WORDS and, when set, the lists of CENSORED_DIRECTORY.
func newModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	words := config.CensoredWordList()
	if config.CensoredDirectory != "" {
		dictionary, err := moderation.NewLoader(os.DirFS(config.CensoredDirectory)).LoadAll(".", words...)
		switch {
		case stderrors.Is(err, errors.ErrEmptyWords):
			log.Warn("No censored words found", "directory", config.CensoredDirectory)
		case err != nil:
			return nil, fmt.Errorf("censored words loading failed: %w", err)
		default:
			log.Info("Censored words loaded", "count", len(dictionary.Words), "languages", dictionary.Languages)
			words = dictionary.Words
		}
	}
	return moderation.NewModerator(words, replacement, log)
}
