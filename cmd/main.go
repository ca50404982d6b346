package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/bankledger/internal/config"
	"github.com/tinoosan/bankledger/internal/httpapi"
	"github.com/tinoosan/bankledger/internal/i18n"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage/memory"
	pgstore "github.com/tinoosan/bankledger/internal/storage/postgres"
	redisstore "github.com/tinoosan/bankledger/internal/storage/redis"
)

// backend is what the services need from a storage implementation.
type backend interface {
	account.Writer
	transfer.Repo
	transfer.Writer
	query.Repo
	httpapi.IdempotencyStore
	httpapi.ReadyChecker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	var store backend
	var closers []func()
	var mem *memory.Store

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.CurrencyShort)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to apply schema", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = pg.Close() })
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		mem = memory.New(cfg.CurrencyShort)
		if cfg.SnapshotPath != "" {
			if err := mem.LoadSnapshot(cfg.SnapshotPath); err != nil {
				logger.Error("failed to load snapshot", "path", cfg.SnapshotPath, "err", err)
				os.Exit(1)
			}
		}
		store = mem
		logger.Info("storage backend: memory", "snapshot", cfg.SnapshotPath)
	}

	var idem httpapi.IdempotencyStore = store
	ready := []httpapi.ReadyChecker{store}
	if cfg.Redis.Addr != "" {
		rs, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = rs.Close() })
		idem = rs
		ready = append(ready, rs)
		logger.Info("idempotency backend: redis", "addr", cfg.Redis.Addr)
	}

	catalog, err := i18n.New(cfg.DefaultLocale, cfg.CurrencyShort)
	if err != nil {
		logger.Error("failed to build message catalog", "err", err)
		os.Exit(1)
	}

	policy := cfg.Policy()
	accountSvc := account.New(store, policy)
	querySvc := query.New(store)

	if cfg.DevSeed {
		if err := devSeed(ctx, logger, accountSvc, querySvc, policy); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	api := httpapi.New(httpapi.Deps{
		Accounts:           accountSvc,
		Transfers:          transfer.New(store, store, policy),
		Queries:            querySvc,
		Idempotency:        idem,
		Catalog:            catalog,
		Ready:              ready,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger service listening",
			"addr", srv.Addr,
			"min_account_balance", ledger.FormatAmount(policy.MinBalance),
			"currency", cfg.CurrencyShort,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	if mem != nil && cfg.SnapshotPath != "" {
		if err := mem.SaveSnapshot(cfg.SnapshotPath); err != nil {
			logger.Error("failed to save snapshot", "path", cfg.SnapshotPath, "err", err)
		} else {
			logger.Info("snapshot saved", "path", cfg.SnapshotPath)
		}
	}
	for _, c := range closers {
		c()
	}
}

// devSeed creates two users with one account each on an empty ledger, so the
// API can be tried right away.
func devSeed(ctx context.Context, l *slog.Logger, accounts account.Service, queries query.Service, policy ledger.Policy) error {
	existing, err := queries.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		l.Info("DEV seed skipped: ledger not empty", "users", len(existing))
		return nil
	}
	curr := policy.MinBalance.Curr().Code()
	opening := ledger.MustFromMinorUnits(curr, ledger.MinorUnits(policy.MinBalance)+100000)

	ids := map[string]int64{}
	for _, name := range []string{"Alice", "Bob"} {
		u, err := accounts.CreateUser(ctx, name)
		if err != nil {
			return err
		}
		a, err := accounts.CreateAccount(ctx, u.ID, opening)
		if err != nil {
			return err
		}
		key := strings.ToLower(name)
		ids[key+"_user_id"] = u.ID
		ids[key+"_account_id"] = a.ID
	}
	l.Info("DEV seed", "ids", ids, "opening_balance", ledger.FormatAmount(opening))
	printDevSeedBanner(ids)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(ids map[string]int64) {
	fmt.Println("==================== DEV SEED ====================")
	for _, k := range []string{"alice_user_id", "alice_account_id", "bob_user_id", "bob_account_id"} {
		fmt.Printf("%s: %d\n", k, ids[k])
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
