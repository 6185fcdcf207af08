package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/config"
	"github.com/mx-space/mdx-core/internal/database"
	"github.com/mx-space/mdx-core/internal/middleware"
	"github.com/mx-space/mdx-core/internal/modules/content/comment"
	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/stats/visit"
	"github.com/mx-space/mdx-core/internal/modules/syndication/newsletter"
	"github.com/mx-space/mdx-core/internal/modules/syndication/subscribe"
	"github.com/mx-space/mdx-core/internal/pkg/batchpool"
	pkgcron "github.com/mx-space/mdx-core/internal/pkg/cron"
	"github.com/mx-space/mdx-core/internal/pkg/ghcontent"
	"github.com/mx-space/mdx-core/internal/pkg/jwt"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
	pkgredis "github.com/mx-space/mdx-core/internal/pkg/redis"
	"github.com/mx-space/mdx-core/internal/pkg/retry"
)

const (
	shutdownTimeout = 10 * time.Second
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	logger *zap.Logger
	signer *jwt.Signer

	db    *gorm.DB
	rc    *pkgredis.Client
	sched *pkgcron.Scheduler

	store       *store.Store
	commentRepo comment.Repository
	comments    *comment.Cache
	visits      *visit.Recorder
	subscribe   *subscribe.Service
	newsletter  *newsletter.Service

	cancel context.CancelFunc
}

// New initializes the application: config → DB → Redis → content store →
// services → routes. The database and Redis are optional; without a
// database the relational routes answer with a not-configured error.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	signer, err := jwt.NewSigner(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, signer: signer}

	db, err := database.Connect(cfg, true)
	switch {
	case database.IsNotConfigured(err):
		logger.Warn("database is not configured, relational features are disabled")
	case err != nil:
		return nil, fmt.Errorf("database: %w", err)
	default:
		a.db = db
	}

	if cfg.Redis.Enabled {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rc = rc
	}

	remote, err := ghcontent.New(ghcontent.Config{
		Token:   cfg.GitHub.Token,
		Owner:   cfg.GitHub.Owner,
		Repo:    cfg.GitHub.Repo,
		Branch:  cfg.GitHub.Branch,
		BaseURL: cfg.GitHub.APIBaseURL,
	}, nil, logger.Named("GitHub"))
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("github: %w", err)
	}
	a.store = store.New(remote, store.Options{
		Root:   cfg.GitHub.ContentRoot,
		DirTTL: cfg.Cache.DirTTL,
		Logger: logger.Named("ContentStore"),
	})

	a.sched = pkgcron.New(logger)
	if a.db != nil {
		a.buildRelational()
	}

	a.router = a.newRouter()
	a.registerRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.registerCronJobs()
	a.sched.Start(ctx)
	return a, nil
}

func (a *App) buildRelational() {
	cfg := a.cfg
	policy := retry.Policy{
		Attempts:  cfg.Cache.RetryAttempts,
		BaseDelay: cfg.Cache.RetryBaseDelay,
		Factor:    retry.DefaultFactor,
	}

	a.commentRepo = comment.NewRepository(a.db)
	a.comments = comment.NewCache(a.commentRepo, comment.CacheOptions{
		ListTTL: cfg.Cache.CommentTTL,
		Pool: batchpool.Options{
			Threshold: cfg.Cache.PoolThreshold,
			TTL:       cfg.Cache.VotePoolTTL,
			Retry:     policy,
		},
		Logger: a.logger,
	})
	a.visits = visit.NewRecorder(a.db, visit.Options{
		Pool: batchpool.Options{
			Threshold: cfg.Cache.PoolThreshold,
			TTL:       cfg.Cache.PoolTTL,
			Retry:     policy,
		},
		Salt:   cfg.JWTSecret,
		Logger: a.logger,
	})
	a.subscribe = subscribe.NewService(a.db)

	if cfg.Newsletter.Enable {
		sender := mail.New(mail.BuildMailConfig(cfg), nil)
		if !sender.Enabled() {
			a.logger.Warn("newsletter is enabled but mail is not, newsletter is disabled")
			return
		}
		a.newsletter = newsletter.NewService(a.db, sender, a.subscribe, newsletter.Options{
			SiteURL:     cfg.Newsletter.SiteURL,
			SiteName:    cfg.Site.Name,
			BatchSize:   cfg.Newsletter.BatchSize,
			MaxAttempts: cfg.Newsletter.MaxAttempts,
			Logger:      a.logger,
		})
	}
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler, flushes both write pools and closes the
// backends. Call it after the HTTP server has stopped accepting requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()
	a.sched.Wait()

	var errs []error
	if a.comments != nil {
		if err := a.comments.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("vote pool: %w", err))
		}
	}
	if a.visits != nil {
		if err := a.visits.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("visit pool: %w", err))
		}
	}
	a.closeBackends()
	return errors.Join(errs...)
}

func (a *App) closeBackends() {
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}

// ShutdownTimeout bounds the final flush on exit.
func ShutdownTimeout() time.Duration { return shutdownTimeout }
