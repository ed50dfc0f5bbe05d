package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/infrastructure/browser"
	"MarketAdvisor/internal/infrastructure/llm"
	"MarketAdvisor/internal/infrastructure/parser"
	"MarketAdvisor/internal/infrastructure/scheduler"
	"MarketAdvisor/internal/infrastructure/storage"
	"MarketAdvisor/internal/infrastructure/telegram"
	"MarketAdvisor/internal/logging"
	"MarketAdvisor/internal/metrics"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/scanner"
	"MarketAdvisor/internal/store"
	"MarketAdvisor/internal/usecase"
	"MarketAdvisor/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	log          *slog.Logger
	orchestrator *usecase.Orchestrator
	metrics      *metrics.Metrics
	closers      []func() error
}

// New opens every adapter named by cfg and builds the orchestrator. Close
// releases what was opened, including on a failed New.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (_ *Application, err error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, log: baseLogger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	pipelineStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	reasoning, err := a.reasoningService(ctx)
	if err != nil {
		return nil, err
	}

	sources, err := a.newsSources()
	if err != nil {
		return nil, err
	}

	sink, err := a.recommendationSink(ctx)
	if err != nil {
		return nil, err
	}

	diagnostics, err := storage.NewDiagnosticLog(filepath.Join(cfg.Pipeline.Workspace, "diagnostics"))
	if err != nil {
		return nil, err
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, cfg.Market.Symbol)
	if tg.Configured() {
		notifier = tg
	} else {
		baseLogger.Info("telegram notifications disabled")
	}

	chrome := browser.NewChrome(browser.Options{
		ChartURL:       cfg.Market.ChartURL,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		ScrollStep:     cfg.Browser.ScrollStep,
		SettleDelay:    cfg.Browser.SettleDelay,
		CaptureTimeout: cfg.Browser.CaptureTimeout,
		Logger:         baseLogger.With("component", "browser"),
	})

	a.orchestrator, err = usecase.NewOrchestrator(Settings(cfg), usecase.Deps{
		Store:       pipelineStore,
		Sources:     sources,
		Reasoning:   reasoning,
		Browser:     chrome,
		Sink:        sink,
		Diagnostics: diagnostics,
		Notifier:    notifier,
		Metrics:     a.metrics,
		Logger:      baseLogger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Settings maps the loaded configuration onto orchestrator settings.
func Settings(cfg config.Config) usecase.Settings {
	return usecase.Settings{
		WorkerCount:  cfg.Pipeline.WorkerCount,
		EnsembleSize: cfg.Pipeline.EnsembleSize,
		Retry:        cfg.Pipeline.Retry,
		Endpoints:    cfg.Browser.Endpoints,
		Workspace:    cfg.Pipeline.Workspace,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Symbol:       cfg.Market.Symbol,
	}
}

func (a *Application) openStore(ctx context.Context) (ports.PipelineStore, error) {
	var (
		s   ports.PipelineStore
		err error
	)
	switch a.cfg.Store.Driver {
	case config.StoreBadger:
		s, err = store.OpenBadger(store.BadgerOptions{
			Path:   a.cfg.Store.Path,
			Logger: logger.New(a.log, "badger"),
		})
	case config.StoreRedis:
		r := a.cfg.Store.Redis
		s, err = store.DialRedis(ctx, r.Addr, r.Password, r.DB, r.Namespace)
	case config.StoreMemory:
		s = store.NewMemory()
	default:
		err = fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *Application) reasoningService(ctx context.Context) (ports.ReasoningService, error) {
	var svc ports.ReasoningService
	switch a.cfg.Reasoning.Provider {
	case config.ProviderHTTP:
		svc = llm.NewHTTPClient(a.cfg.Reasoning)
	default:
		gemini, err := llm.NewGeminiClient(ctx, a.cfg.Reasoning)
		if err != nil {
			return nil, err
		}
		svc = gemini
	}
	return llm.NewThrottled(svc, a.cfg.Reasoning.RequestsPerMinute, max(a.cfg.Pipeline.WorkerCount, 1)), nil
}

func (a *Application) newsSources() ([]ports.NewsSource, error) {
	registry := scanner.NewRegistry(
		parser.NewRSSScanner(nil),
		parser.NewNewsAPIScanner(nil, ""),
		parser.NewHTMLScanner(nil),
	)

	sites := make([]config.SiteConfig, 0, len(a.cfg.Sites))
	for _, site := range a.cfg.Sites {
		if site.Scanner == "newsapi" && site.Options["apiKey"] == "" {
			a.log.Warn("skipping site without api key", "site", site.Name)
			continue
		}
		sites = append(sites, site)
	}
	return parser.NewSources(registry, sites, a.log.With("component", "source"))
}

func (a *Application) recommendationSink(ctx context.Context) (ports.RecommendationSink, error) {
	parquetSink, err := storage.NewParquetSink(a.cfg.Recommendations.ParquetDir)
	if err != nil {
		return nil, err
	}
	sinks := storage.MultiSink{parquetSink}

	if a.cfg.Database.DSN == "" {
		return sinks, nil
	}
	db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return append(sinks, repo), nil
}

// Run performs a single full pipeline execution for today.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	return a.orchestrator.Run(ctx, a.today())
}

// RunStage executes one stage against the artifacts already stored.
func (a *Application) RunStage(ctx context.Context, name string) (usecase.StageReport, error) {
	return a.orchestrator.RunStage(ctx, name, a.today())
}

// Stages lists the pipeline stages in order.
func (a *Application) Stages() []string {
	return a.orchestrator.Stages()
}

// Schedule runs the pipeline on the configured cron expression and serves
// metrics until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.log.With("component", "cron"))
	sched := usecase.NewScheduler(driver, a.orchestrator, a.cfg.Scheduler.RunTimeout, a.log.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}

	var srv *http.Server
	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server stopped", "error", err)
			}
		}()
		a.log.Info("metrics server listening", "addr", a.cfg.Metrics.Addr)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var errs []error
	errs = append(errs, sched.Stop(shutdownCtx))
	if srv != nil {
		errs = append(errs, srv.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

// Close releases the store and database handles in reverse order.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) today() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}
