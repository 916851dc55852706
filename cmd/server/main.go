package main

import (
	"chat-relay/auth"
	"chat-relay/broadcast"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/pipeline"
	"chat-relay/presence"
	"chat-relay/ratelimit"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/session"
	"chat-relay/store"
	"chat-relay/transport"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
)

// Name of the JetStream KV bucket backing the shared store.
const sharedStateBucket = "chat-relay-state"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the websocket server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	serverID := config.ServerID
	if serverID == "" {
		host, _ := os.Hostname()
		serverID = host
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Coordination state: a local map for single-instance deployments,
	// a NATS JetStream bucket when instances share presence and sessions.
	var (
		kv  store.Store
		bus broadcast.Bus
	)
	switch config.StoreBackend {
	case store.BackendLocal:
		kv = store.NewMemory()
		bus = broadcast.NewMemoryBus()
	case store.BackendShared:
		nc, err := nats.Connect(config.NatsURL, nats.Name("chat-relay-"+serverID))
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Close()
		kv, err = store.NewShared(nc, sharedStateBucket, log)
		if err != nil {
			return fmt.Errorf("shared store setup failed: %w", err)
		}
		bus = broadcast.NewNatsBus(nc)
	default:
		return fmt.Errorf("unknown store backend %q", config.StoreBackend)
	}

	// 4. Domain services
	bannedWords, err := loadBannedWords(config.BannedWordsFile)
	if err != nil {
		return fmt.Errorf("banned words loading failed: %w", err)
	}
	checker, err := moderation.NewChecker(bannedWords)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	sessions := session.NewService(kv, log,
		config.SessionTTL, config.ActivityUpdateInterval, config.ValidationCacheTTL)
	registry := presence.NewRegistry(kv, log)
	limiter := ratelimit.NewLimiter(kv, log, serverID)

	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	fileRepository := repositories.NewFileRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.MessagePageSize)

	// 5. Fan-out plumbing
	hub := transport.NewHub(log)
	broadcaster := broadcast.NewBroadcaster(bus, hub, log, serverID, config.BroadcastTopic)
	tasks := runtime.NewTaskRunner(log, config.TaskQueueSize, config.TaskWorkers)
	outcomes := observability.NewOutcomes()
	stats := observability.NewStatsReporter(log, outcomes, config.StatsInterval)

	ingestor := pipeline.NewIngestor(pipeline.Deps{
		Log:             log,
		Sessions:        sessions,
		Presence:        registry,
		Limiter:         limiter,
		Checker:         checker,
		Users:           userRepository,
		Files:           fileRepository,
		Messages:        messageRepository,
		Local:           hub,
		Publisher:       broadcaster,
		Tasks:           tasks,
		Outcomes:        outcomes,
		RateLimitMax:    config.RateLimitMax,
		RateLimitWindow: config.RateLimitWindow,
	})

	verifier := auth.NewVerifier(config.JwtSecret, "chat-relay")
	router := transport.NewRouter(log)
	handlers := transport.NewHandlers(log, hub, registry,
		roomRepository, messageRepository, broadcaster, ingestor)
	handlers.RegisterAll(router)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := transport.NewServer(log, verifier, sessions, userRepository,
		registry, hub, router, handlers, address)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers under supervision
	sup := runtime.NewSupervisor(log)
	sup.Add(broadcaster, tasks, stats)
	go sup.Run(ctx)

	banner := fmt.Sprintf(" chat-relay %s | %s ", serverID, server.Addr())
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(banner))

	// Use an error channel to capture serving issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := server.Run(ctx); err != nil {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// loadBannedWords reads one word per line, skipping blanks and '#' comments.
func loadBannedWords(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		word := strings.TrimSpace(line)
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	return words, nil
}
