// Package health reports backend reachability and exposes operator tools:
// the job scheduler, a mail test and the log files.
package health

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/cron"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const pingTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Deps are the optional backends to report on. Nil fields are skipped.
type Deps struct {
	DB        *gorm.DB
	Redis     Pinger
	Scheduler *cron.Scheduler
	Mailer    Mailer
	LogDir    string
}

type logItem struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

func RegisterRoutes(root, api *gin.RouterGroup, d Deps, authMW gin.HandlerFunc) {
	root.GET("/health", func(c *gin.Context) {
		report := d.check(c.Request.Context())
		code := http.StatusOK
		if report["status"] != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})

	admin := api.Group("/health", authMW)
	if d.Scheduler != nil {
		admin.GET("/cron", func(c *gin.Context) { response.OK(c, d.Scheduler.List()) })
		admin.POST("/cron/run/:name", func(c *gin.Context) {
			if err := d.Scheduler.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.Error(c, err)
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})
	}

	admin.POST("/email/test", func(c *gin.Context) {
		to := strings.TrimSpace(c.Query("to"))
		if to == "" {
			response.BadRequest(c, "to is required")
			return
		}
		if d.Mailer == nil {
			response.Error(c, apperr.NotConfigured("mail"))
			return
		}
		err := d.Mailer.Send(c.Request.Context(), mail.Message{
			To:      []string{to},
			Subject: "Mail test",
			Text:    "Mail delivery is configured correctly.",
			HTML:    "<p>Mail delivery is configured correctly.</p>",
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{"ok": true})
	})

	admin.GET("/log/list", func(c *gin.Context) {
		items, err := listLogs(d.LogDir)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, items)
	})
	admin.GET("/log", func(c *gin.Context) {
		name := filepath.Base(strings.TrimSpace(c.Query("filename")))
		if d.LogDir == "" || name == "." || name == "/" || !strings.HasSuffix(name, ".log") {
			response.BadRequest(c, "invalid filename")
			return
		}
		path := filepath.Join(d.LogDir, name)
		if _, err := os.Stat(path); err != nil {
			response.NotFound(c)
			return
		}
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.File(path)
	})
}

func (d Deps) check(ctx context.Context) gin.H {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	report := gin.H{"status": "ok"}
	if d.DB != nil {
		ok := false
		if sqlDB, err := d.DB.DB(); err == nil {
			ok = sqlDB.PingContext(ctx) == nil
		}
		report["database"] = ok
		if !ok {
			report["status"] = "degraded"
		}
	}
	if d.Redis != nil {
		ok := d.Redis.Ping(ctx) == nil
		report["redis"] = ok
		if !ok {
			report["status"] = "degraded"
		}
	}
	return report
}

func listLogs(dir string) ([]logItem, error) {
	items := []logItem{}
	if dir == "" {
		return items, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return items, nil
		}
		return nil, apperr.Internal("log", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, logItem{Filename: e.Name(), Size: info.Size(), Modified: info.ModTime().UnixMilli()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Modified > items[j].Modified })
	return items, nil
}
