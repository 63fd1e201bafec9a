package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fincept/gateway/internal/adapters/inequity"
	"github.com/fincept/gateway/internal/adapters/saxoeu"
	"github.com/fincept/gateway/internal/adapters/usequity"
	"github.com/fincept/gateway/internal/auth"
	"github.com/fincept/gateway/internal/config"
	"github.com/fincept/gateway/internal/credstore"
	"github.com/fincept/gateway/internal/logging"
	"github.com/fincept/gateway/internal/mastercontract"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/notify"
	"github.com/fincept/gateway/internal/orchestrator"
	"github.com/fincept/gateway/internal/plugin"
	"github.com/fincept/gateway/internal/ports"
	"github.com/fincept/gateway/internal/router"
	"github.com/fincept/gateway/internal/streaming"
	"github.com/fincept/gateway/internal/ratelimit"
)

// app bundles the wired gateway, constructed identically by every
// subcommand that needs more than raw config.
type app struct {
	cfg          *config.Config
	log          ports.Logger
	notif        ports.Notifier
	creds        ports.CredentialsStore
	cache        ports.MasterContractCache
	sqliteCache  *mastercontract.SQLiteCache
	manager      *auth.Manager
	orchestrator *orchestrator.Orchestrator
	pipeline     *plugin.Pipeline
	router       *router.Router
	aggregator   *streaming.Aggregator
	metrics      *metrics.Recorder
}

// buildApp loads config and constructs every layer of the gateway, up to
// but not including starting any background goroutines (auth refresh,
// streaming fan-in) — callers that only need one-shot access (login,
// route, status) can stop there; serveCmd calls start() afterward.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, dotenvPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var log ports.Logger
	if cfg.Logging.Format == "json" {
		log = logging.NewJSON()
	} else {
		log = logging.New()
	}
	notif := notify.New()

	creds, err := credstore.NewFileStore("")
	if err != nil {
		return nil, err
	}

	cache, sqliteCache, err := buildMasterContractCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	manager := auth.New(auth.Config{
		RefreshLead:        cfg.Auth.RefreshLead,
		MaxConsecutiveFail: cfg.Auth.MaxConsecutiveFail,
		FailureBackoff:     cfg.Auth.FailureBackoff,
		MaintenanceCron:    cfg.Auth.MaintenanceCron,
	}, creds, log, notif)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder(prometheus.DefaultRegisterer)
	}

	for _, b := range cfg.Brokers {
		if !b.Enabled {
			continue
		}
		adapter, err := buildAdapter(b, log, cache, rec)
		if err != nil {
			return nil, fmt.Errorf("app: broker %s: %w", b.ID, err)
		}
		manager.Register(adapter)
	}

	orch := orchestrator.New(manager, cfg.Orchestrator.FanOutDeadline)
	orch.SetMetrics(rec)
	for _, b := range cfg.Brokers {
		if b.Enabled {
			orch.Enable(b.ID)
		}
	}

	pipeline := plugin.New(log)
	r := router.New(manager, orch, pipeline, notif, log)
	r.SetMetrics(rec)
	agg := streaming.New(manager, log, cfg.Streaming.StalledAfter)
	agg.SetMetrics(rec)

	return &app{
		cfg:          cfg,
		log:          log,
		notif:        notif,
		creds:        creds,
		cache:        cache,
		sqliteCache:  sqliteCache,
		manager:      manager,
		orchestrator: orch,
		pipeline:     pipeline,
		router:       r,
		aggregator:   agg,
		metrics:      rec,
	}, nil
}

func buildMasterContractCache(ctx context.Context, cfg *config.Config, log ports.Logger) (ports.MasterContractCache, *mastercontract.SQLiteCache, error) {
	path := cfg.MasterContract.SQLite.Path
	if path == "" {
		path = "data/master_contract.db"
	}
	sqliteCache, err := mastercontract.OpenSQLiteCache(path)
	if err != nil {
		return nil, nil, err
	}

	if cfg.MasterContract.Backend == "s3" {
		loader, err := mastercontract.NewS3Loader(ctx, cfg.MasterContract.S3.Bucket, cfg.MasterContract.S3.Key, cfg.MasterContract.S3.Region, sqliteCache, log)
		if err != nil {
			return nil, nil, err
		}
		if _, err := loader.Refresh(ctx); err != nil {
			log.Warn("app", "initial master-contract refresh failed", map[string]any{"error": err.Error()})
		}
	}

	return sqliteCache, sqliteCache, nil
}

func buildAdapter(b config.BrokerConfig, log ports.Logger, cache ports.MasterContractCache, rec *metrics.Recorder) (ports.BrokerAdapter, error) {
	switch b.Kind {
	case "saxoeu":
		cfg := saxoeu.Config{
			BrokerID:     b.ID,
			BaseURL:      b.BaseURL,
			WebSocketURL: b.WSURL,
			ClientID:     b.ClientID,
			ClientSecret: b.ClientSecret,
			AuthURL:      b.AuthURL,
			TokenURL:     b.TokenURL,
			RedirectURI:  b.RedirectURI,
		}
		limits := ratelimit.Config{BurstCapacity: 10, PerSecond: b.RateLimit.OrdersPerSecond}
		if limits.PerSecond <= 0 {
			limits.PerSecond = 4
		}
		adapter := saxoeu.New(cfg, log, limits, cache)
		adapter.SetMetrics(rec)
		return adapter, nil
	case "usequity":
		cfg := usequity.Config{
			BrokerID: b.ID,
			BaseURL:  b.BaseURL,
			StreamURL: b.WSURL,
		}
		adapter := usequity.New(cfg, log, cache)
		adapter.SetMetrics(rec)
		return adapter, nil
	case "inequity":
		cfg := inequity.Config{
			BrokerID:  b.ID,
			BaseURL:   b.BaseURL,
			WSURL:     b.WSURL,
			APIKey:    b.APIKey,
			APISecret: b.APISecret,
		}
		adapter := inequity.New(cfg, log, cache)
		adapter.SetMetrics(rec)
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", b.Kind)
	}
}

// start launches the long-running background loops: auth refresh and
// streaming fan-in. Call only from serveCmd.
func (a *app) start(ctx context.Context) error {
	if errs := a.manager.InitializeAll(ctx); len(errs) > 0 {
		for id, err := range errs {
			a.log.Warn("app", "broker failed to initialize", map[string]any{"broker_id": id, "error": err.Error()})
		}
	}
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.aggregator.Start(ctx)
	return nil
}

// stop halts background loops and releases held resources.
func (a *app) stop() {
	a.aggregator.Stop()
	a.manager.Stop()
	if a.sqliteCache != nil {
		a.sqliteCache.Close()
	}
}
