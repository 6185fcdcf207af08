// Package aggregate serves the site overview for readers and the dashboard
// counters for the owner.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

// Documents lists every stored document.
type Documents interface {
	ListDocsWithContent(ctx context.Context) ([]*store.Document, error)
}

// Pending reports buffered writes not yet persisted.
type Pending interface {
	Pending() int
}

type Service struct {
	docs    Documents
	db      *gorm.DB
	site    siteInfo
	pending []Pending
	now     func() time.Time
}

// NewService builds the service. db may be nil.
func NewService(docs Documents, db *gorm.DB, url, name, description string, pending ...Pending) *Service {
	return &Service{
		docs:    docs,
		db:      db,
		site:    siteInfo{URL: url, Name: name, Description: description},
		pending: pending,
		now:     time.Now,
	}
}

// Aggregate summarizes the published documents.
func (s *Service) Aggregate(ctx context.Context) (*aggregateData, error) {
	docs, err := s.docs.ListDocsWithContent(ctx)
	if err != nil {
		return nil, err
	}

	perCategory := map[string]int{}
	tagSet := map[string]struct{}{}
	total := 0
	for _, d := range docs {
		if d.Status() != store.StatusPublished {
			continue
		}
		total++
		perCategory[d.Category()]++
		tags, _ := d.Meta.GetList(store.MetaTags)
		for _, t := range tags {
			if t != "" {
				tagSet[t] = struct{}{}
			}
		}
	}

	categories := make([]categoryCount, 0, len(perCategory))
	for name, n := range perCategory {
		categories = append(categories, categoryCount{Name: name, Count: n})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return &aggregateData{Site: s.site, Categories: categories, Tags: tags, Count: total}, nil
}

// Stat collects the dashboard counters concurrently.
func (s *Service) Stat(ctx context.Context) (*statData, error) {
	out := &statData{Documents: map[string]int{}}
	for _, p := range s.pending {
		out.PendingIO += p.Pending()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.docs.ListDocsWithContent(gctx)
		if err != nil {
			return err
		}
		for _, d := range docs {
			out.Documents[d.Status()]++
		}
		return nil
	})

	if s.db != nil {
		var comments []struct {
			Status string
			N      int64
		}
		var subscribers, pending, views int64
		db := s.db.WithContext(gctx)
		today := startOfDay(s.now())

		g.Go(func() error {
			return db.Model(&models.CommentModel{}).Select("status, COUNT(*) AS n").Group("status").Scan(&comments).Error
		})
		g.Go(func() error {
			return db.Model(&models.SubscriberModel{}).Where("status = ?", models.SubscriberActive).Count(&subscribers).Error
		})
		g.Go(func() error {
			return db.Model(&models.NewsletterQueueModel{}).Where("status = ?", models.NewsletterPending).Count(&pending).Error
		})
		g.Go(func() error {
			return db.Model(&models.VisitModel{}).Where("visited_at >= ?", today).Count(&views).Error
		})

		if err := g.Wait(); err != nil {
			return nil, classify(err)
		}
		out.Comments = make(map[string]int64, len(comments))
		for _, row := range comments {
			out.Comments[row.Status] = row.N
		}
		out.Subscriber, out.Newsletter, out.TodayViews = &subscribers, &pending, &views
		return out, nil
	}

	if err := g.Wait(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func classify(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Internal("db", err)
}
