package comment

import (
	"strings"
	"time"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

const (
	maxContentLength = 2000
	maxAuthorLength  = 64
)

// Filter selects the comments of one document, either by uid or by path.
// Exactly one field must be set.
type Filter struct {
	ArticleUID  string `form:"uid"  json:"uid,omitempty"`
	ArticlePath string `form:"path" json:"path,omitempty"`
}

func (f Filter) normalized() (Filter, error) {
	f.ArticleUID = strings.TrimSpace(f.ArticleUID)
	f.ArticlePath = strings.Trim(strings.TrimSpace(f.ArticlePath), "/")
	if (f.ArticleUID == "") == (f.ArticlePath == "") {
		return f, apperr.Invalid("exactly one of uid or path is required")
	}
	return f, nil
}

// Votes are the counters of one comment.
type Votes struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

func (v Votes) add(d models.VoteDirection) Votes {
	if d == models.VoteUp {
		v.Upvotes++
	} else {
		v.Downvotes++
	}
	return v
}

// VoteEvent is one queued vote.
type VoteEvent struct {
	ID        int64
	Direction models.VoteDirection
}

// VoteDelta is the aggregate of the queued votes of one comment.
type VoteDelta struct {
	ID   int64
	Up   int64
	Down int64
}

// View is the public projection of a comment.
type View struct {
	ID          int64     `json:"id"`
	ParentID    *int64    `json:"parent_id"`
	ArticleUID  string    `json:"article_uid"`
	ArticlePath string    `json:"article_path"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	Upvotes     int64     `json:"upvotes"`
	Downvotes   int64     `json:"downvotes"`
	CreatedAt   time.Time `json:"created_at"`
}

func toView(m *models.CommentModel) View {
	return View{
		ID:          m.ID,
		ParentID:    m.ParentID,
		ArticleUID:  m.ArticleUID,
		ArticlePath: m.ArticlePath,
		AuthorName:  m.AuthorName,
		Content:     m.Content,
		Upvotes:     m.Upvotes,
		Downvotes:   m.Downvotes,
		CreatedAt:   m.CreatedAt,
	}
}

// Payload is the cached result of one approved listing.
type Payload struct {
	Items         []View `json:"items"`
	ArchivedCount int64  `json:"archived_count"`
}

func (p Payload) clone() Payload {
	items := make([]View, len(p.Items))
	copy(items, p.Items)
	return Payload{Items: items, ArchivedCount: p.ArchivedCount}
}

// Node is a comment with its approved replies.
type Node struct {
	View
	Replies []*Node `json:"replies"`
}

// Thread is the public listing of a document's comments.
type Thread struct {
	Items         []*Node `json:"items"`
	ArchivedCount int64   `json:"archived_count"`
}

type CreateInput struct {
	ArticleUID  string `json:"article_uid"  binding:"required"`
	ArticlePath string `json:"article_path" binding:"required"`
	AuthorName  string `json:"author_name"  binding:"required"`
	AuthorEmail string `json:"author_email"`
	Content     string `json:"content"      binding:"required"`
	ParentID    *int64 `json:"parent_id"`
}

type ReplyInput struct {
	AuthorName string `json:"author_name"`
	Content    string `json:"content" binding:"required"`
}

type VoteInput struct {
	Direction models.VoteDirection `json:"direction" binding:"required"`
}

// Action is a moderation action applied to a set of comments.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionDelete    Action = "delete"
)

type ModerateInput struct {
	IDs    []int64 `json:"ids"    binding:"required"`
	Action Action  `json:"action" binding:"required"`
}

// ListQuery filters the admin listing.
type ListQuery struct {
	Status      models.CommentStatus
	ArticleUID  string
	ArticlePath string
}
