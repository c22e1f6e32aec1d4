package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/internal/config"
	"github.com/echolia/inference-gateway/internal/httpapi"
	"github.com/echolia/inference-gateway/internal/identity"
	"github.com/echolia/inference-gateway/internal/keystore"
	"github.com/echolia/inference-gateway/internal/logger"
	"github.com/echolia/inference-gateway/internal/orchestrator"
	"github.com/echolia/inference-gateway/internal/provider"
	"github.com/echolia/inference-gateway/internal/quota"
	"github.com/echolia/inference-gateway/pkg/health"
	"github.com/echolia/inference-gateway/pkg/version"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:     "inference-gatewayd",
	Short:   "inference-gatewayd - the end-to-end encrypted inference gateway daemon",
	Version: version.String(),
	RunE:    runDaemon,
}

func main() {
	rootCmd.Flags().StringVarP(&configDir, "config-dir", "c", "config", "Directory to load {environment}.yaml from")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: config.GetEnvironment()})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.Info("starting gateway", logger.String("environment", cfg.Environment))

	keys, err := keystore.Open(cfg.KeyStore.Path, cfg.KeyStore.RotationPeriod, log)
	if err != nil {
		return fmt.Errorf("opening keystore: %w", err)
	}

	store, err := buildQuotaStore(cfg.Quota)
	if err != nil {
		return fmt.Errorf("building quota store: %w", err)
	}

	ledger := quota.NewLedger(store, quota.NewStaticTierResolver(), quota.Ceilings{
		FreeDailyLimit:     cfg.Quota.FreeDailyLimit,
		ElevatedDailyLimit: cfg.Quota.ElevatedDailyLimit,
	})

	backends := buildProviderBackends(cfg.Provider)
	gateway, err := provider.New(cfg.Provider.Timeout, backends...)
	if err != nil {
		return fmt.Errorf("building provider gateway: %w", err)
	}

	orch := orchestrator.New(keys, ledger, gateway, log)
	checker := health.NewChecker(keys, ledger, gateway)

	secret := []byte(os.Getenv(cfg.Identity.JWTSecretEnv))
	if len(secret) == 0 {
		return fmt.Errorf("environment variable %s is required for JWT verification", cfg.Identity.JWTSecretEnv)
	}
	resolver := identity.NewJWTResolver(secret)

	server := httpapi.New(cfg.Server.Address, resolver, keys, ledger, orch, checker, log)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting http api: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("error during shutdown", logger.Error(err))
	}

	return nil
}

func buildQuotaStore(cfg *config.QuotaConfig) (quota.Store, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return quota.NewPGStore(pool), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return quota.NewRedisStore(client), nil
	default:
		return quota.NewMemStore(), nil
	}
}

func buildProviderBackends(cfg *config.ProviderConfig) []provider.Backend {
	backends := make([]provider.Backend, 0, len(cfg.Preference))
	for _, name := range cfg.Preference {
		if name == "echo" {
			backends = append(backends, provider.NewEcho(""))
			continue
		}
		backend, ok := cfg.Backends[name]
		if !ok || backend.APIKey == "" {
			continue
		}
		switch {
		case strings.HasPrefix(name, "openai"):
			backends = append(backends, provider.NewOpenAICompatible(name, backend.BaseURL, backend.Model, backend.APIKey))
		case strings.HasPrefix(name, "anthropic"):
			backends = append(backends, provider.NewAnthropicCompatible(name, backend.BaseURL, backend.Model, backend.APIKey))
		}
	}
	return backends
}
