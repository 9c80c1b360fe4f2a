package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/application"
	appai "github.com/bryanwahyu/auditor/internal/application/ai"
	appaudits "github.com/bryanwahyu/auditor/internal/application/audits"
	appnotify "github.com/bryanwahyu/auditor/internal/application/notify"
	"github.com/bryanwahyu/auditor/internal/application/pipeline"
	"github.com/bryanwahyu/auditor/internal/application/quota"
	"github.com/bryanwahyu/auditor/internal/config"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
	"github.com/bryanwahyu/auditor/internal/infra/ai/openai"
	"github.com/bryanwahyu/auditor/internal/infra/analysis"
	"github.com/bryanwahyu/auditor/internal/infra/db"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/auditor/internal/infra/lock"
	"github.com/bryanwahyu/auditor/internal/infra/notify"
	"github.com/bryanwahyu/auditor/internal/infra/queue/redisq"
	"github.com/bryanwahyu/auditor/internal/infra/queue/riverq"
	"github.com/bryanwahyu/auditor/internal/infra/render"
	"github.com/bryanwahyu/auditor/internal/infra/storage"
	"github.com/bryanwahyu/auditor/internal/middleware"
)

// app holds the process-wide connections shared by every command.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *sqlstore.Store
	rdb     redis.UniversalClient
	objects *storage.Store
	clock   application.Clock

	audits  *sqlstore.AuditRepository
	tenants *sqlstore.TenantRepository
	widgets *sqlstore.WidgetRepository
	errors  *sqlstore.StageErrorRepository

	// enqueuer is always set; queue only for the pull backends (sql, redis).
	enqueuer jobs.Enqueuer
	queue    jobs.Queue
	pg       *pgxpool.Pool
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	log := config.NewLogger(cfg)

	store, err := db.Open(ctx, cfg, log.WithField("pkg", "store"))
	if err != nil {
		return nil, fmt.Errorf("initializing data store: %w", err)
	}
	a := &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		clock:   application.SystemClock{},
		audits:  sqlstore.NewAuditRepository(store),
		tenants: sqlstore.NewTenantRepository(store),
		widgets: sqlstore.NewWidgetRepository(store),
		errors:  sqlstore.NewStageErrorRepository(store),
	}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	if cfg.StorageEnabled() {
		objects, err := storage.New(ctx, cfg.Minio.Endpoint, cfg.Minio.Region, cfg.Minio.BucketName,
			cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		a.objects = objects.WithPresign(cfg.Minio.PresignExpiry)
	}

	switch cfg.Queue.Backend {
	case "river":
		if a.pg, err = pgxpool.New(ctx, cfg.PostgresDSN()); err != nil {
			a.close()
			return nil, fmt.Errorf("pgx pool: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := riverq.Migrate(ctx, a.pg); err != nil {
				a.close()
				return nil, err
			}
		}
		client, err := riverq.NewInsertOnly(a.pg, a.policy(), log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.enqueuer = client
	case "redis":
		a.queue = redisq.New(a.rdb, cfg.Queue.Prefix, cfg.Queue.Lease)
	default:
		a.queue = sqlstore.NewJobQueue(store, cfg.Queue.Lease)
	}
	if a.queue != nil {
		a.enqueuer = a.queue
	}
	log.WithFields(logrus.Fields{"queue": cfg.Queue.Backend, "redis": a.rdb != nil, "storage": a.objects != nil}).
		Info("components ready")
	return a, nil
}

func (a *app) close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("closing data store")
	}
}

func (a *app) intake() *appaudits.Service {
	return &appaudits.Service{
		Repo:    a.audits,
		Errors:  a.errors,
		Widgets: a.widgets,
		Quota:   quota.NewLedger(a.tenants),
		Queue:   a.enqueuer,
		Clock:   a.clock,
		Log:     a.log.WithField("pkg", "audits"),
		Links:   a.links(),
	}
}

// links is nil unless storage is configured; a typed nil would not be.
func (a *app) links() audits.LinkSigner {
	if a.objects == nil {
		return nil
	}
	return a.objects
}

func (a *app) locker() jobs.Locker {
	if a.rdb != nil {
		return lock.NewRedis(redislock.New(a.rdb))
	}
	return lock.NewLocal()
}

func (a *app) limiter() middleware.Limiter {
	if a.rdb != nil {
		return middleware.NewRedisLimiter(a.rdb, a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window)
	}
	return middleware.NewRateLimiter(a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window)
}

func (a *app) checkers() map[string]middleware.HealthChecker {
	checks := map[string]middleware.HealthChecker{
		"database": middleware.CheckFunc(a.store.Ping),
	}
	if a.rdb != nil {
		checks["redis"] = middleware.CheckFunc(func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		})
	}
	if a.pg != nil {
		checks["river"] = middleware.CheckFunc(a.pg.Ping)
	}
	if a.objects != nil {
		checks["storage"] = middleware.CheckFunc(a.objects.Ping)
	}
	return checks
}

func (a *app) renderer() (audits.Renderer, error) {
	cfg := a.cfg
	if cfg.Render.Mode == "remote" {
		return render.NewClient(cfg.Render.BaseURL, cfg.Render.Timeout, nil, a.log), nil
	}
	if a.objects == nil {
		return nil, errors.New("render.mode html needs minio.endpoint for report storage")
	}
	return render.NewHTMLRenderer(a.objects, a.clock), nil
}

func (a *app) dispatcher() *appnotify.Dispatcher {
	var mailer appnotify.Mailer
	if a.cfg.SMTPEnabled() {
		s := a.cfg.SMTP
		mailer = notify.NewMailer(s.Host, s.Port, s.Username, s.Password, s.From)
	} else {
		a.log.Info("smtp not configured, completion emails disabled")
	}
	poster := notify.NewWebhookPoster(nil, a.cfg.Webhook.Timeout)
	return appnotify.NewDispatcher(mailer, poster, a.tenants, a.widgets, a.log).WithLinks(a.links())
}

func (a *app) runner() (*pipeline.Runner, error) {
	cfg := a.cfg
	renderer, err := a.renderer()
	if err != nil {
		return nil, err
	}

	summarizer := appai.NewService(nil)
	if cfg.AIEnabled() {
		summarizer = appai.NewService(openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout))
	} else {
		a.log.Info("ai not configured, summaries disabled")
	}

	return &pipeline.Runner{
		Audits:     a.audits,
		Errors:     a.errors,
		Tenants:    a.tenants,
		Quota:      quota.NewLedger(a.tenants),
		Tx:         a.store,
		Analyzer:   analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.Timeout, nil, a.log),
		Summarizer: summarizer,
		Renderer:   renderer,
		Notifier:   a.dispatcher(),
		Queue:      a.queue,
		Policy:     a.policy(),
		Clock:      a.clock,
		Log:        a.log.WithField("pkg", "pipeline"),
	}, nil
}

func (a *app) policy() jobs.RetryPolicy {
	return jobs.RetryPolicy{
		MaxAttempts:    a.cfg.Worker.MaxAttempts,
		InitialBackoff: a.cfg.Worker.InitialBackoff,
		MaxBackoff:     a.cfg.Worker.MaxBackoff,
	}
}

// workLoop returns the blocking job loop of the configured backend.
func (a *app) workLoop() (func(context.Context) error, error) {
	r, err := a.runner()
	if err != nil {
		return nil, err
	}
	if a.queue == nil {
		client, err := riverq.NewClient(a.pg, r, riverq.Options{
			Workers:         a.cfg.Worker.Concurrency,
			Policy:          a.policy(),
			Lease:           a.cfg.Queue.Lease,
			ShutdownTimeout: a.cfg.Worker.ShutdownTimeout,
		}, a.log)
		if err != nil {
			return nil, err
		}
		return client.Run, nil
	}
	pool := &pipeline.Pool{
		Queue:           a.queue,
		Runner:          r,
		Concurrency:     a.cfg.Worker.Concurrency,
		PollInterval:    a.cfg.Worker.PollInterval,
		ShutdownTimeout: a.cfg.Worker.ShutdownTimeout,
		Log:             a.log.WithField("pkg", "worker"),
	}
	return pool.Run, nil
}

func (a *app) sweeper() *pipeline.Sweeper {
	return &pipeline.Sweeper{
		Audits:     a.audits,
		Queue:      a.enqueuer,
		Locker:     a.locker(),
		Interval:   a.cfg.Sweep.Interval,
		StuckAfter: a.cfg.Sweep.StuckAfter,
		Batch:      a.cfg.Sweep.Batch,
		Clock:      a.clock,
		Log:        a.log.WithField("pkg", "sweeper"),
	}
}

// shutdownCtx bounds cleanup work after the root context is gone.
func shutdownCtx(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}
