package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"partnerbot/internal/adapter/channel"
	"partnerbot/internal/adapter/directory"
	"partnerbot/internal/adapter/gateway"
	"partnerbot/internal/adapter/identity"
	"partnerbot/internal/adapter/nlu"
	"partnerbot/internal/adapter/partner"
	"partnerbot/internal/adapter/qa"
	"partnerbot/internal/adapter/store"
	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/logger"
	"partnerbot/internal/infra/tracer"
	"partnerbot/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Stores
	var (
		principalStore domain.PrincipalStore
		nonceStore     domain.NonceStore
		refreshCache   identity.RefreshTokenCache
		sweepTargets   []domain.Sweeper
		storeCloser    func() error
	)
	switch cfg.Store.Backend {
	case "redis":
		rs, err := store.NewRedisStore(cfg.Store.RedisURL, cfg.Store.TTL, cfg.Store.NonceTTL)
		if err != nil {
			return fmt.Errorf("redis store: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		principalStore, nonceStore, storeCloser = rs, rs, rs.Close
		refreshCache = identity.NewRedisCache(rs.Client(), cfg.Store.TTL)
	default:
		ss, err := store.NewSQLiteStore(cfg.Store.SQLitePath, cfg.Store.TTL, cfg.Store.NonceTTL)
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		principalStore, nonceStore, storeCloser = ss, ss, ss.Close
		refreshCache = identity.NewMemoryCache()
		sweepTargets = append(sweepTargets, ss)
	}
	defer storeCloser()

	// 4. Backend clients
	identityClient := identity.NewClient(cfg.Identity, refreshCache, log)
	appTokens := identity.NewAppTokenSource(identityClient, cfg.Directory.Resource)
	directoryClient := directory.NewClient(cfg.Directory, appTokens.Token, log)
	partnerClient := partner.NewClient(cfg.Partner, log)
	qaClient := qa.NewClient(cfg.QA, log)
	nluClient := nlu.NewBreakerService(nlu.NewClient(cfg.NLU, log), cfg.NLU, log)

	// 5. Intent registry
	principals := usecase.NewPrincipalManager(principalStore, log)
	registry, err := usecase.BuildRegistry(
		usecase.NewListCustomersIntent(partnerClient, log),
		usecase.NewSelectCustomerIntent(partnerClient, principals, log),
		usecase.NewListSubscriptionsIntent(partnerClient, log),
		usecase.NewSelectSubscriptionIntent(partnerClient, principals, log),
		usecase.NewQuestionIntent(qaClient, log),
		usecase.NewOfficeIssuesIntent(partnerClient, log),
	)
	if err != nil {
		return fmt.Errorf("intent registry: %w", err)
	}

	// 6. Authentication flows
	loginCfg := usecase.LoginConfig{
		BotID:       cfg.Bot.ID,
		Tenant:      cfg.Bot.Tenant,
		Resource:    cfg.Partner.Resource,
		RedirectURI: cfg.Bot.RedirectURI,
	}
	signer := usecase.NewStateSigner([]byte(cfg.Bot.StateSecret), cfg.Bot.StateTTL)
	login := usecase.NewLoginFlow(identityClient, nonceStore, signer, loginCfg, log)
	completer := usecase.NewAuthCompleter(signer, nonceStore, identityClient, directoryClient,
		partnerClient, principals, registry, loginCfg, log)
	refresher := usecase.NewTokenRefresher(identityClient, principals, cfg.Partner.Resource, log)

	// 7. Dispatcher & channels
	dispatcher := usecase.NewDispatcher(registry, principals, refresher, login, nluClient, log)

	webchat := channel.NewWebChatChannel(log)
	if err := webchat.Start(ctx, dispatcher.Handle); err != nil {
		return fmt.Errorf("webchat channel: %w", err)
	}
	defer webchat.Stop(context.Background())

	// 8. Expiry sweeper
	if len(sweepTargets) > 0 {
		sweeper := usecase.NewSweeper(sweepTargets, log)
		if err := sweeper.Start(cfg.Sweeper.Schedule); err != nil {
			return fmt.Errorf("sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	// 9. Gateway
	srv := gateway.NewServer(webchat.Handler(), completer, cfg.Gateway, log)
	log.Info("partner bot starting", "store", cfg.Store.Backend, "addr", cfg.Gateway.Addr)
	return srv.Start(ctx)
}
