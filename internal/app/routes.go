package app

import (
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/middleware"
	"github.com/mx-space/mdx-core/internal/modules/auth"
	"github.com/mx-space/mdx-core/internal/modules/content/category"
	"github.com/mx-space/mdx-core/internal/modules/content/comment"
	"github.com/mx-space/mdx-core/internal/modules/content/post"
	"github.com/mx-space/mdx-core/internal/modules/stats/aggregate"
	"github.com/mx-space/mdx-core/internal/modules/stats/visit"
	"github.com/mx-space/mdx-core/internal/modules/syndication/feed"
	"github.com/mx-space/mdx-core/internal/modules/syndication/newsletter"
	"github.com/mx-space/mdx-core/internal/modules/syndication/sitemap"
	"github.com/mx-space/mdx-core/internal/modules/syndication/subscribe"
	"github.com/mx-space/mdx-core/internal/modules/system/health"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const (
	apiPrefix   = "/api"
	postsPrefix = apiPrefix + "/posts"
)

func (a *App) registerRoutes() {
	root := a.router.Group("")
	site := feed.Site{URL: a.cfg.Site.URL, Name: a.cfg.Site.Name, Description: a.cfg.Site.Description}
	feed.NewHandler(a.store, site, a.logger).RegisterRoutes(root)
	sitemap.RegisterRoutes(root, a.store, a.cfg.Site.URL)

	api := a.router.Group(apiPrefix)
	api.Use(middleware.OptionalAuth(a.signer))
	if a.rc != nil {
		api.Use(middleware.RateLimit(a.rc, a.cfg.RateLimit.Max, a.cfg.RateLimit.Window, a.logger.Named("RateLimit")))
	}
	if a.visits != nil {
		api.Use(visit.Middleware(a.visits, postsPrefix))
	}
	authMW := middleware.Auth(a.signer)

	deps := health.Deps{
		DB:        a.db,
		Scheduler: a.sched,
		LogDir:    a.cfg.LogDir(),
	}
	if a.rc != nil {
		deps.Redis = a.rc
	}
	if sender := mail.New(mail.BuildMailConfig(a.cfg), nil); sender.Enabled() {
		deps.Mailer = sender
	}
	health.RegisterRoutes(root, api, deps, authMW)

	auth.NewHandler(auth.NewService(a.signer, auth.Options{
		Username:     a.cfg.Admin.Username,
		PasswordHash: a.cfg.Admin.PasswordHash,
		TokenTTL:     a.cfg.Admin.TokenTTL,
		Logger:       a.logger.Named("Auth"),
	})).RegisterRoutes(api)

	var publisher post.Publisher
	if a.newsletter != nil {
		publisher = a.newsletter
	}
	post.NewHandler(post.NewService(a.store, publisher, a.logger)).RegisterRoutes(api, authMW)
	category.NewHandler(a.store).RegisterRoutes(api, authMW)

	var pending []aggregate.Pending
	if a.db != nil {
		pending = append(pending, a.comments, a.visits)
	}
	aggregate.NewHandler(aggregate.NewService(a.store, a.db, a.cfg.Site.URL, a.cfg.Site.Name, a.cfg.Site.Description, pending...)).
		RegisterRoutes(api, authMW)

	if a.db == nil {
		for _, prefix := range []string{"/comments", "/subscribe", "/newsletter", "/visits"} {
			notConfigured(api, prefix)
		}
		return
	}

	// Public submissions are guarded against accidental double posts.
	submit := api.Group("")
	var guard comment.VoteGuard
	if a.rc != nil {
		submit.Use(middleware.Idempotence(a.rc, a.logger.Named("Idempotence")))
		guard = comment.NewRedisVoteGuard(a.rc, 0)
	}

	comment.NewHandler(comment.NewService(a.commentRepo, a.comments, a.logger), guard).RegisterRoutes(submit, authMW)
	subscribe.NewHandler(a.subscribe).RegisterRoutes(submit, authMW)
	visit.NewHandler(a.visits).RegisterRoutes(api, authMW)
	if a.newsletter != nil {
		newsletter.NewHandler(a.newsletter, a.sched).RegisterRoutes(api, authMW)
	} else {
		notConfigured(api, "/newsletter")
	}
}

func notConfigured(rg *gin.RouterGroup, prefix string) {
	h := func(c *gin.Context) { response.Error(c, apperr.NotConfigured(prefix[1:])) }
	rg.Any(prefix, h)
	rg.Any(prefix+"/*rest", h)
}
