package comment

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

// Repository is the relational storage of comments.
type Repository interface {
	ListApproved(ctx context.Context, f Filter) ([]models.CommentModel, error)
	CountArchived(ctx context.Context, f Filter) (int64, error)
	GetVotes(ctx context.Context, id int64) (Votes, error)
	// ApplyVotes adds every delta in one transaction.
	ApplyVotes(ctx context.Context, deltas []VoteDelta) error

	Get(ctx context.Context, id int64) (*models.CommentModel, error)
	Create(ctx context.Context, c *models.CommentModel) error
	List(ctx context.Context, q ListQuery, page pagination.Query) ([]models.CommentModel, response.Pagination, error)

	// Articles returns the distinct documents the given comments belong to.
	Articles(ctx context.Context, ids []int64) ([]Filter, error)
	SetStatus(ctx context.Context, ids []int64, from []models.CommentStatus, to models.CommentStatus) (int64, error)
	Delete(ctx context.Context, ids []int64) (int64, error)
}

type gormRepository struct{ db *gorm.DB }

// NewRepository returns a Repository over db.
func NewRepository(db *gorm.DB) Repository { return &gormRepository{db: db} }

func (r *gormRepository) scoped(ctx context.Context, f Filter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.CommentModel{})
	if f.ArticleUID != "" {
		return tx.Where("article_uid = ?", f.ArticleUID)
	}
	return tx.Where("article_path = ?", f.ArticlePath)
}

func (r *gormRepository) ListApproved(ctx context.Context, f Filter) ([]models.CommentModel, error) {
	var out []models.CommentModel
	err := r.scoped(ctx, f).
		Where("status = ?", models.CommentApproved).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal("db", err)
	}
	return out, nil
}

func (r *gormRepository) CountArchived(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := r.scoped(ctx, f).Where("status = ?", models.CommentArchived).Count(&n).Error; err != nil {
		return 0, apperr.Internal("db", err)
	}
	return n, nil
}

func (r *gormRepository) GetVotes(ctx context.Context, id int64) (Votes, error) {
	var row models.CommentModel
	err := r.db.WithContext(ctx).Select("id, upvotes, downvotes").First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Votes{}, apperr.NotFound("comment %d not found", id)
		}
		return Votes{}, apperr.Internal("db", err)
	}
	return Votes{Upvotes: row.Upvotes, Downvotes: row.Downvotes}, nil
}

func (r *gormRepository) ApplyVotes(ctx context.Context, deltas []VoteDelta) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range deltas {
			cols := map[string]any{}
			if d.Up != 0 {
				cols["upvotes"] = gorm.Expr("upvotes + ?", d.Up)
			}
			if d.Down != 0 {
				cols["downvotes"] = gorm.Expr("downvotes + ?", d.Down)
			}
			if len(cols) == 0 {
				continue
			}
			if err := tx.Model(&models.CommentModel{}).Where("id = ?", d.ID).UpdateColumns(cols).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Internal("db", err)
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id int64) (*models.CommentModel, error) {
	var c models.CommentModel
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("comment %d not found", id)
		}
		return nil, apperr.Internal("db", err)
	}
	return &c, nil
}

func (r *gormRepository) Create(ctx context.Context, c *models.CommentModel) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.Internal("db", err)
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, q ListQuery, page pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	tx := r.db.WithContext(ctx).Model(&models.CommentModel{}).Order("created_at DESC, id DESC")
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.ArticleUID != "" {
		tx = tx.Where("article_uid = ?", q.ArticleUID)
	}
	if q.ArticlePath != "" {
		tx = tx.Where("article_path = ?", q.ArticlePath)
	}

	var comments []models.CommentModel
	pag, err := pagination.Paginate(tx, page, &comments)
	if err != nil {
		return nil, response.Pagination{}, apperr.Internal("db", err)
	}
	return comments, pag, nil
}

func (r *gormRepository) Articles(ctx context.Context, ids []int64) ([]Filter, error) {
	var rows []struct {
		ArticleUID  string
		ArticlePath string
	}
	err := r.db.WithContext(ctx).Model(&models.CommentModel{}).
		Distinct("article_uid", "article_path").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("db", err)
	}
	out := make([]Filter, len(rows))
	for i, row := range rows {
		out[i] = Filter{ArticleUID: row.ArticleUID, ArticlePath: row.ArticlePath}
	}
	return out, nil
}

func (r *gormRepository) SetStatus(ctx context.Context, ids []int64, from []models.CommentStatus, to models.CommentStatus) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.CommentModel{}).Where("id IN ?", ids)
	if len(from) > 0 {
		tx = tx.Where("status IN ?", from)
	}
	res := tx.Update("status", to)
	if res.Error != nil {
		return 0, apperr.Internal("db", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Replies of a removed comment are promoted to top-level.
		if err := tx.Model(&models.CommentModel{}).
			Where("parent_id IN ?", ids).
			Update("parent_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.CommentModel{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, apperr.Internal("db", err)
	}
	return affected, nil
}
