// Command tradedesk is the Startup Bootstrapper (C9): it loads
// configuration, opens the database (running embedded migrations),
// seeds the admin account and static fixtures, wires the Gateway,
// Memory Store, Agent Runtime, Orchestrator, and Progress Bus, and
// finally serves the HTTP Surface.
//
// Phase ordering mirrors the teacher's cmd/tarsy/main.go: config,
// database, services, router, listen.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantdesk/tradedesk/pkg/agent"
	"github.com/quantdesk/tradedesk/pkg/api"
	"github.com/quantdesk/tradedesk/pkg/auth"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/database"
	"github.com/quantdesk/tradedesk/pkg/events"
	"github.com/quantdesk/tradedesk/pkg/fixtures"
	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/gateway/feargreed"
	"github.com/quantdesk/tradedesk/pkg/gateway/fred"
	"github.com/quantdesk/tradedesk/pkg/gateway/llm"
	"github.com/quantdesk/tradedesk/pkg/gateway/market"
	"github.com/quantdesk/tradedesk/pkg/gateway/news"
	"github.com/quantdesk/tradedesk/pkg/memory"
	"github.com/quantdesk/tradedesk/pkg/models"
	"github.com/quantdesk/tradedesk/pkg/orchestrator"
	"github.com/quantdesk/tradedesk/pkg/ratelimit"
	"github.com/quantdesk/tradedesk/pkg/store"
)

// Exit codes (§6).
const (
	exitOK           = 0
	exitFatalConfig  = 1
	exitDBInitFailed = 2
	exitSeedFailed   = 3
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	fixturesDir := flag.String("fixtures-dir", getEnv("FIXTURES_DIR", "./deploy/fixtures"), "Path to static fixture files")
	flag.Parse()

	envPath := *configDir + "/.env"
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, *configDir, *fixturesDir))
}

func run(ctx context.Context, configDir, fixturesDir string) int {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		slog.Error("configuration failed", "error", err)
		return exitFatalConfig
	}

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("database initialization failed", "error", err)
		return exitDBInitFailed
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("closing database client", "error", err)
		}
	}()
	slog.Info("connected to database and applied migrations")

	sessionStore := store.New(dbClient.DB())

	if err := seedAdmin(ctx, sessionStore, cfg.Bootstrap); err != nil {
		slog.Error("admin seed failed", "error", err)
		return exitSeedFailed
	}

	n, err := fixtures.Load(ctx, fixtures.FileSource{Dir: fixturesDir}, sessionStore)
	if err != nil {
		slog.Error("fixture load failed", "error", err)
		return exitSeedFailed
	}
	slog.Info("fixtures loaded", "rows", n)

	gw, embedder := buildGateway(ctx, cfg.Gateway, cfg.Pipeline.Model)

	memStore := memory.New(dbClient.DB(), embedder)
	dispatcher := agent.NewGatewayDispatcher(gw, memStore)
	runtime := agent.New(gw, dispatcher, cfg.Pipeline.Model, cfg.Pipeline)

	bus := events.New(256, cfg.Pipeline.ProgressLinger)
	orch := orchestrator.New(sessionStore, memStore, runtime, bus, cfg.Pipeline)

	authSvc := auth.New(sessionStore, cfg.Auth)
	limiter := ratelimit.New(cfg.RateLimit)

	server := api.NewServer(cfg, dbClient, sessionStore, authSvc, gw, orch, bus, limiter)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		errCh <- server.Start(":" + cfg.Server.HTTPPort)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server exited unexpectedly", "error", err)
			return exitFatalConfig
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
	return exitOK
}

// adminStore is the narrow slice of *store.Store seedAdmin needs,
// following the same accept-interfaces pattern as pkg/orchestrator and
// pkg/api so seedAdmin can be tested against an in-memory fake.
type adminStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (string, error)
}

// seedAdmin creates the bootstrap admin account if it does not already
// exist. If ADMIN_PASSWORD is unset, a random 16-char password is
// generated and logged once (§6) — this is the only time it is ever
// shown, so an operator must change it or reset it afterward.
func seedAdmin(ctx context.Context, st adminStore, cfg config.BootstrapConfig) error {
	username, err := auth.NormalizeUsername(cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("invalid admin username: %w", err)
	}

	if _, err := st.GetUserByUsername(ctx, username); err == nil {
		slog.Info("admin account already exists, skipping seed", "username", username)
		return nil
	}

	password := cfg.AdminPassword
	if password == "" {
		password, err = randomPassword(16)
		if err != nil {
			return fmt.Errorf("generating admin password: %w", err)
		}
		slog.Warn("ADMIN_PASSWORD not set, generated a one-time random password", "username", username, "password", password)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	if _, err := st.CreateUser(ctx, username, hash, true); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	slog.Info("admin account seeded", "username", username)
	return nil
}

func randomPassword(n int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// buildGateway constructs a gateway.Gateway from whichever provider
// credentials are present (§6's env var table). A disabled provider is
// left nil; the Gateway itself returns KindUnavailable for that
// provider's operations rather than panicking (pkg/gateway/gateway.go).
func buildGateway(ctx context.Context, cfg config.GatewayConfig, model string) (*gateway.Gateway, memory.Embedder) {
	providers := gateway.Providers{
		Sentiment: feargreed.New(),
	}

	var embedder memory.Embedder = memory.NewHashEmbedder(64)

	if cfg.LLM.Enabled {
		p, err := llm.New(ctx, cfg.LLM.APIKey, model)
		if err != nil {
			slog.Error("LLM provider disabled: failed to initialize", "error", err)
		} else {
			providers.LLM = p
			embedder = p
		}
	} else {
		slog.Warn("LLM_API_KEY not set, LLM provider disabled")
	}

	if cfg.Finnhub.Enabled {
		providers.Market = market.New(cfg.Finnhub.APIKey)
	} else {
		slog.Warn("FINNHUB_API_KEY not set, market quote provider disabled")
	}

	if cfg.FRED.Enabled {
		providers.Series = fred.New(cfg.FRED.APIKey)
	} else {
		slog.Warn("FRED_API_KEY not set, economic series provider disabled")
	}

	if cfg.Naver.Enabled {
		clientID, clientSecret, _ := strings.Cut(cfg.Naver.APIKey, ":")
		providers.News = news.New(clientID, clientSecret)
	} else {
		slog.Warn("NAVER_CLIENT_ID/SECRET not set, news provider disabled")
	}

	return gateway.New(providers, cfg), embedder
}
