package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/empathai/internal/chat"
	"github.com/ent0n29/empathai/internal/completion"
	"github.com/ent0n29/empathai/internal/config"
	"github.com/ent0n29/empathai/internal/cryptox"
	"github.com/ent0n29/empathai/internal/httpapi"
	"github.com/ent0n29/empathai/internal/keyring"
	"github.com/ent0n29/empathai/internal/logging"
	"github.com/ent0n29/empathai/internal/memory"
	"github.com/ent0n29/empathai/internal/moods"
	"github.com/ent0n29/empathai/internal/observability"
	"github.com/ent0n29/empathai/internal/storage"
	"github.com/ent0n29/empathai/internal/summarizer"
	"github.com/ent0n29/empathai/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewDefault()
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres init failed: %v", err)
		}
		defer pool.Close()
		log.Printf("store: postgres")
	} else {
		log.Printf("store: in-memory (DATABASE_URL not set; data is lost on restart)")
	}

	store := memory.NewStore(pool)
	defer store.Close()
	userStore := users.NewStore(pool)
	userSvc := users.NewService(userStore)
	moodStore := moods.NewStore(pool)

	crypto := newCryptoService(cfg)
	if crypto.Enabled() {
		log.Printf("encryption: enabled")
	} else {
		if cfg.EncryptAtRest {
			log.Printf("encryption: no master key loaded; message writes will be refused until one is configured")
		} else {
			log.Printf("encryption: disabled; messages are stored in plaintext")
		}
	}
	ring := keyring.New(crypto, userStore)

	adapter, err := completion.NewAdapter(completion.Config{
		Mode:    cfg.CompletionMode,
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
	})
	if err != nil {
		log.Fatalf("completion adapter init failed: %v", err)
	}

	sum := summarizer.New(store, ring, adapter, summarizer.Config{
		MessageWindow:    cfg.SummaryMessageWindow,
		SnapshotMaxChars: cfg.SummarySnapshotMaxChars,
		MaxOutputTokens:  cfg.SummaryMaxOutputTokens,
	})
	sched := summarizer.NewScheduler(sum, cfg.SummaryRefreshEvery, logger, metrics)

	builder := chat.NewContextBuilder(store, ring, cfg.ContextHistoryLimit, cfg.SystemPrompt)
	chatSvc := chat.NewService(store, userSvc, ring, adapter, builder, sched, metrics, logger, chat.Config{
		EncryptAtRest:  cfg.EncryptAtRest,
		ReplyMaxTokens: cfg.ReplyMaxTokens,
	})

	api := httpapi.New(cfg, userSvc, chatSvc, moodStore, crypto.Enabled(), logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	// Let in-flight summary refreshes land before the stores go away.
	sched.Wait()

	log.Printf("shutdown complete")
}

// newCryptoService loads the master key from config: either raw hex or an
// argon2id derivation from a passphrase and salt. With neither present the
// service comes up disabled and every encryption call fails fast.
func newCryptoService(cfg config.Config) *cryptox.Service {
	if cfg.MasterKeyHex != "" {
		return cryptox.NewServiceFromHex(cfg.MasterKeyHex)
	}
	if cfg.MasterKeyPassphrase != "" {
		return cryptox.NewService(cryptox.DeriveKey([]byte(cfg.MasterKeyPassphrase), []byte(cfg.MasterKeySalt)))
	}
	return cryptox.NewService(nil)
}
