// Package app assembles SignDesk's components from configuration. The server,
// the worker and the CLI all build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/config"
	"github.com/dharsanguruparan/SignDesk/internal/database"
	"github.com/dharsanguruparan/SignDesk/internal/documents"
	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/mail"
	"github.com/dharsanguruparan/SignDesk/internal/metrics"
	"github.com/dharsanguruparan/SignDesk/internal/processing"
	"github.com/dharsanguruparan/SignDesk/internal/queue"
	"github.com/dharsanguruparan/SignDesk/internal/search"
	"github.com/dharsanguruparan/SignDesk/internal/server"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
	"github.com/dharsanguruparan/SignDesk/internal/store"
	"github.com/dharsanguruparan/SignDesk/internal/worker"
)

var ErrWorkerNeedsPostgres = errors.New("the intake worker needs the postgres store")

// App holds the long-lived components.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     store.Store
	Index     *search.Index
	Objects   artifacts.Store
	Agent     *agent.Client
	Documents *documents.Service

	closers []func() error
}

// New opens the store, the search index and object storage, and builds the
// document service on top of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	objects, err := artifacts.Open(cfg.S3)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure buckets: %w", err)
	}
	a.Objects = objects

	a.Index = a.openIndex(ctx)
	a.Agent = agent.NewClient(cfg.Agent, nil, logger)

	relay, err := mail.NewRelay(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.ReplyTo, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init mail relay: %w", err)
	}
	a.Documents = documents.New(documents.Deps{
		Store:   st,
		Writer:  a.Agent,
		Mailer:  mail.NewService(relay, mail.Layout{LogoURL: cfg.Mail.LogoURL, SiteURL: cfg.Mail.SiteURL}, logger),
		Signer:  signing.NewSigner(cfg.Share.Secret, cfg.Share.TTL),
		Index:   a.Index,
		Objects: objects,
		Origin:  cfg.Server.PublicOrigin,
		Logger:  logger,
	})
	return a, nil
}

// openIndex opens and fills the search index. Search degrades to substring
// matching when the index cannot be opened.
func (a *App) openIndex(ctx context.Context) *search.Index {
	log := a.Logger.With(zap.String("component", "search"))
	idx, err := search.Open(a.Config.Search.IndexPath)
	if err != nil {
		log.Warn("search index unavailable", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, idx.Close)
	if err := idx.Rebuild(ctx, a.Store); err != nil {
		log.Warn("rebuild search index failed", zap.Error(err))
	}
	return idx
}

func (a *App) limits() intake.Limits {
	return intake.Limits{MaxFileSize: a.Config.Intake.MaxFileSize, AllowedTypes: a.Config.Intake.AllowedTypes}
}

// files picks where intake records live: postgres when it is the document
// store (so the worker sees them), memory otherwise.
func (a *App) files(ctx context.Context) (intake.Files, error) {
	if a.Config.Store.Driver != config.DriverPostgres {
		return intake.NewMemoryFiles(), nil
	}
	pool, err := a.pool(ctx)
	if err != nil {
		return nil, err
	}
	return intake.NewPostgresFiles(pool), nil
}

func (a *App) pool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, a.Config.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pool, nil
}

// Intake builds the upload pipeline. In async mode files are handed to the
// asynq worker; otherwise the returned processor runs them in-process and
// must be started by the caller.
func (a *App) Intake(ctx context.Context) (*intake.Service, *processing.Processor, error) {
	files, err := a.files(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := intake.NewService(files, a.Objects, a.Agent, a.limits(), a.Logger)
	if a.Config.Intake.Async {
		client := asynq.NewClient(queue.RedisOpt(a.Config.Redis))
		a.closers = append(a.closers, client.Close)
		svc.UseDispatcher(queue.NewDispatcher(client))
		return svc, nil, nil
	}
	proc := processing.New(
		func(ctx context.Context, job processing.Job) error { return svc.Process(ctx, job.FileID) },
		func(ctx context.Context, job processing.Job, err error) { svc.Fail(ctx, job.FileID, err) },
		a.Config.Intake.Workers,
		a.Logger,
	)
	svc.UseDispatcher(proc)
	return svc, proc, nil
}

// Close releases everything New and Intake opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunServer serves the HTTP API until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	files, proc, err := a.Intake(ctx)
	if err != nil {
		return err
	}
	srv := server.New(cfg, server.Deps{
		Documents: a.Documents,
		Intake:    files,
		Assets:    a.Objects,
		Metrics:   metrics.NewCollector(),
		Processor: proc,
		Logger:    logger,
	})
	return srv.Serve(ctx)
}

// RunWorker consumes intake jobs until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Store.Driver != config.DriverPostgres {
		return ErrWorkerNeedsPostgres
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	objects, err := artifacts.Open(cfg.S3)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		return fmt.Errorf("ensure buckets: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, Objects: objects, Agent: agent.NewClient(cfg.Agent, nil, logger)}
	defer a.Close()
	pool, err := a.pool(ctx)
	if err != nil {
		return err
	}
	pipeline := intake.NewService(intake.NewPostgresFiles(pool), objects, a.Agent, a.limits(), logger)

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Intake.Workers,
		Logger:      logger.With(zap.String("component", "asynq")).Sugar(),
	})
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	logger.Info("worker started", zap.Int("concurrency", cfg.Intake.Workers), zap.Int("pid", os.Getpid()))
	if err := srv.Run(worker.NewProcessor(pipeline, logger).Handler()); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
