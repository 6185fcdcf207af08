package visit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/batchpool"
)

const (
	insertBatchSize     = 100
	defaultSummaryLimit = 50
	maxFieldLength      = 512
)

type Options struct {
	Pool batchpool.Options
	// Salt is mixed into client address hashes.
	Salt   string
	Logger *zap.Logger
	Now    func() time.Time
}

// Recorder buffers visits and writes them in bulk.
type Recorder struct {
	db     *gorm.DB
	pool   *batchpool.Pool[models.VisitModel]
	salt   string
	now    func() time.Time
	logger *zap.Logger
}

func NewRecorder(db *gorm.DB, opts Options) *Recorder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pool.Name == "" {
		opts.Pool.Name = "VisitPool"
	}
	opts.Pool.Logger = opts.Logger
	r := &Recorder{
		db:     db,
		salt:   opts.Salt,
		now:    opts.Now,
		logger: opts.Logger.Named("Visits"),
	}
	r.pool = batchpool.New(r.flush, opts.Pool)
	return r
}

// Record queues one visit.
func (r *Recorder) Record(ctx context.Context, hit Hit, ip, userAgent string) error {
	path := normalizePath(hit.Path)
	if path == "" {
		return apperr.Invalid("path is required")
	}
	return r.pool.Add(ctx, models.VisitModel{
		Path:       path,
		ArticleUID: truncate(strings.TrimSpace(hit.ArticleUID)),
		Referrer:   truncate(hit.Referrer),
		UserAgent:  truncate(userAgent),
		IPHash:     r.hashIP(ip),
		VisitedAt:  r.now(),
	})
}

func (r *Recorder) flush(ctx context.Context, batch []models.VisitModel) error {
	// Rows that failed an earlier attempt carry no id yet; a fresh copy keeps
	// gorm from reusing ids assigned by a partial insert.
	rows := make([]models.VisitModel, len(batch))
	copy(rows, batch)
	for i := range rows {
		rows[i].ID = 0
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return err
	}
	r.logger.Debug("visits written", zap.Int("count", len(rows)))
	return nil
}

// Flush writes buffered visits now.
func (r *Recorder) Flush(ctx context.Context) error { return r.pool.Flush(ctx) }

// Close flushes and stops accepting visits.
func (r *Recorder) Close(ctx context.Context) error { return r.pool.Close(ctx) }

// Pending reports how many visits are buffered.
func (r *Recorder) Pending() int { return r.pool.Len() }

// Summary returns the most viewed paths in the range.
func (r *Recorder) Summary(ctx context.Context, q SummaryQuery) ([]PathCount, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = defaultSummaryLimit
	}
	tx := r.db.WithContext(ctx).Model(&models.VisitModel{}).
		Select("path, MAX(article_uid) AS article, COUNT(*) AS views, COUNT(DISTINCT ip_hash) AS visitors").
		Group("path").
		Order("views DESC, path ASC").
		Limit(limit)
	if q.From != nil {
		tx = tx.Where("visited_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("visited_at < ?", q.To.AddDate(0, 0, 1))
	}

	var rows []PathCount
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("db", err)
	}
	return rows, nil
}

// Prune deletes visits older than before and reports how many were removed.
func (r *Recorder) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("visited_at < ?", before).Delete(&models.VisitModel{})
	if res.Error != nil {
		return 0, apperr.Internal("db", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *Recorder) hashIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(r.salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}

func truncate(s string) string {
	if len(s) <= maxFieldLength {
		return s
	}
	return s[:maxFieldLength]
}
