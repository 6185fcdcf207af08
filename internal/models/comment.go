package models

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentArchived CommentStatus = "archived"
	// CommentSpam is storable and filterable, but no moderation action sets it.
	CommentSpam    CommentStatus = "spam"
	CommentDeleted CommentStatus = "deleted"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentArchived, CommentSpam, CommentDeleted:
		return true
	}
	return false
}

// VoteDirection is "up" or "down".
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func (d VoteDirection) Valid() bool { return d == VoteUp || d == VoteDown }

// CommentModel is a comment on a document. Documents are referenced by uid
// and by their path at the time of commenting.
type CommentModel struct {
	ID          int64         `json:"id"                     gorm:"primaryKey;autoIncrement"`
	ArticleUID  string        `json:"article_uid"            gorm:"type:varchar(191);not null;index"`
	ArticlePath string        `json:"article_path"           gorm:"type:varchar(512);not null;index"`
	AuthorName  string        `json:"author_name"            gorm:"type:varchar(191)"`
	AuthorEmail string        `json:"author_email,omitempty" gorm:"type:varchar(191)"`
	Content     string        `json:"content"                gorm:"type:text;not null"`
	Status      CommentStatus `json:"status"                 gorm:"type:varchar(16);not null;default:'pending';index"`
	ParentID    *int64        `json:"parent_id"              gorm:"index"`
	Upvotes     int64         `json:"upvotes"                gorm:"not null;default:0"`
	Downvotes   int64         `json:"downvotes"              gorm:"not null;default:0"`
	IP          string        `json:"-"                      gorm:"type:varchar(64)"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (CommentModel) TableName() string { return "comments" }
