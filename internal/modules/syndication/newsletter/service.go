package newsletter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/cron"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const (
	JobName            = "newsletter"
	defaultBatchSize   = 50
	defaultMaxAttempts = 5
)

var summaryEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
)

// EnqueueInput describes a document that was just published.
type EnqueueInput struct {
	UID     string
	Path    string
	Title   string
	Summary string
	Tags    []string
}

type Options struct {
	// SiteURL prefixes document and unsubscribe links.
	SiteURL   string
	SiteName  string
	BatchSize int
	// MaxAttempts is how many runs may fail before an entry is marked failed.
	MaxAttempts int
	Logger      *zap.Logger
	Now         func() time.Time
}

type Service struct {
	db         *gorm.DB
	mailer     Mailer
	recipients Recipients
	opts       Options
	logger     *zap.Logger
}

func NewService(db *gorm.DB, mailer Mailer, recipients Recipients, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.SiteURL = strings.TrimSuffix(opts.SiteURL, "/")
	return &Service{db: db, mailer: mailer, recipients: recipients, opts: opts, logger: logger.Named("Newsletter")}
}

// Enqueue queues a document for mailing. A document is queued at most once;
// it reports whether this call queued it.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (bool, error) {
	if strings.TrimSpace(in.UID) == "" {
		return false, apperr.Invalid("uid is required")
	}
	row := models.NewsletterQueueModel{
		ArticleUID:  in.UID,
		ArticlePath: in.Path,
		Title:       in.Title,
		Summary:     in.Summary,
		Tags:        models.StringArray(in.Tags),
		Status:      models.NewsletterPending,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_uid"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, apperr.Internal("db", res.Error)
	}
	queued := res.RowsAffected == 1
	if queued {
		s.logger.Info("newsletter queued", zap.String("uid", in.UID), zap.String("path", in.Path))
	}
	return queued, nil
}

// SendPending mails up to one batch of queued documents to every active
// subscriber. Each successful send is recorded, so an entry that failed for
// some recipients is retried only for the rest on the next run. After
// MaxAttempts failing runs the entry is marked failed.
func (s *Service) SendPending(ctx context.Context) (int, error) {
	var entries []models.NewsletterQueueModel
	err := s.db.WithContext(ctx).
		Where("status = ?", models.NewsletterPending).
		Order("created_at ASC").
		Limit(s.opts.BatchSize).
		Find(&entries).Error
	if err != nil {
		return 0, apperr.Internal("db", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	subs, err := s.recipients.Active(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for i := range entries {
		e := &entries[i]
		if err := s.deliver(ctx, e, subs); err != nil {
			s.logger.Warn("newsletter delivery failed", zap.String("uid", e.ArticleUID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.ArticleUID, err))
			s.mark(ctx, e, err)
			continue
		}
		s.mark(ctx, e, nil)
		sent++
	}
	s.logger.Info("newsletter run", zap.Int("sent", sent), zap.Int("failed", len(errs)), zap.Int("recipients", len(subs)))
	return sent, errors.Join(errs...)
}

// deliver mails e to every subscriber it has not reached yet. A failing
// recipient does not stop the others.
func (s *Service) deliver(ctx context.Context, e *models.NewsletterQueueModel, subs []models.SubscriberModel) error {
	summary, err := renderSummary(e.Summary)
	if err != nil {
		return err
	}
	done, err := s.delivered(ctx, e.ID)
	if err != nil {
		return err
	}

	detail := s.opts.SiteURL + "/" + strings.TrimSuffix(strings.TrimPrefix(e.ArticlePath, "/"), ".mdx")
	var errs []error
	for _, sub := range subs {
		email := strings.ToLower(strings.TrimSpace(sub.Email))
		if _, ok := done[email]; ok {
			continue
		}
		unsubscribe := s.opts.SiteURL + "/subscribe/unsubscribe?token=" + url.QueryEscape(sub.Token)
		html, err := mail.RenderNewsletter(mail.NewsletterData{
			SiteName:       s.opts.SiteName,
			Title:          e.Title,
			Tags:           e.Tags,
			Summary:        summary,
			DetailURL:      detail,
			UnsubscribeURL: unsubscribe,
		})
		if err != nil {
			return err
		}
		err = s.mailer.Send(ctx, mail.Message{
			To:      []string{sub.Email},
			Subject: e.Title,
			Text:    fmt.Sprintf("%s\n\n%s\n\n%s\n\nUnsubscribe: %s\n", e.Title, e.Summary, detail, unsubscribe),
			HTML:    html,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.Email, err))
			continue
		}
		if err := s.recordDelivery(ctx, e.ID, email); err != nil {
			errs = append(errs, err)
		}
		done[email] = struct{}{}
	}
	return errors.Join(errs...)
}

func (s *Service) delivered(ctx context.Context, queueID string) (map[string]struct{}, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.NewsletterDeliveryModel{}).
		Where("queue_id = ?", queueID).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, apperr.Internal("db", err)
	}
	done := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		done[e] = struct{}{}
	}
	return done, nil
}

func (s *Service) recordDelivery(ctx context.Context, queueID, email string) error {
	row := models.NewsletterDeliveryModel{QueueID: queueID, Email: email, SentAt: s.opts.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return apperr.Internal("db", err)
	}
	return nil
}

// mark stores the outcome of one run. A failure keeps the entry pending
// until it has used MaxAttempts runs.
func (s *Service) mark(ctx context.Context, e *models.NewsletterQueueModel, cause error) {
	attempts := e.Attempts + 1
	cols := map[string]any{"attempts": attempts}
	switch {
	case cause == nil:
		cols["status"] = models.NewsletterSent
		cols["last_error"] = ""
		cols["sent_at"] = s.opts.Now()
	case attempts >= s.opts.MaxAttempts:
		cols["status"] = models.NewsletterFailed
		cols["last_error"] = cause.Error()
		s.logger.Error("newsletter gave up", zap.String("uid", e.ArticleUID), zap.Int("attempts", attempts), zap.Error(cause))
	default:
		cols["status"] = models.NewsletterPending
		cols["last_error"] = cause.Error()
	}
	if err := s.db.WithContext(ctx).Model(e).UpdateColumns(cols).Error; err != nil {
		s.logger.Error("newsletter state not saved", zap.String("uid", e.ArticleUID), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, status models.NewsletterStatus, q pagination.Query) ([]models.NewsletterQueueModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.NewsletterQueueModel{}).Order("created_at DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var rows []models.NewsletterQueueModel
	pag, err := pagination.Paginate(tx, q, &rows)
	if err != nil {
		return nil, response.Pagination{}, apperr.Internal("db", err)
	}
	return rows, pag, nil
}

// Job returns the cron job that drains the queue every interval.
func (s *Service) Job(interval time.Duration) cron.Job {
	return cron.Job{
		Name:        JobName,
		Description: "Mail newly published documents to subscribers",
		Interval:    interval,
		Fn: func(ctx context.Context) error {
			_, err := s.SendPending(ctx)
			return err
		},
	}
}

func renderSummary(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := summaryEngine.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
