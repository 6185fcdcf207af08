package models

import "time"

type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// SubscriberModel is a newsletter recipient.
type SubscriberModel struct {
	Base
	Email          string           `json:"email"           gorm:"type:varchar(191);uniqueIndex;not null"`
	Status         SubscriberStatus `json:"status"          gorm:"type:varchar(16);not null;default:'active';index"`
	Source         string           `json:"source"          gorm:"type:varchar(64)"`
	Token          string           `json:"-"               gorm:"type:char(36);uniqueIndex"`
	UnsubscribedAt *time.Time       `json:"unsubscribed_at"`
}

func (SubscriberModel) TableName() string { return "subscribers" }

type NewsletterStatus string

const (
	NewsletterPending NewsletterStatus = "pending"
	NewsletterSent    NewsletterStatus = "sent"
	// NewsletterFailed entries ran out of attempts and are no longer retried.
	NewsletterFailed NewsletterStatus = "failed"
)

// NewsletterQueueModel is one published document waiting to be mailed.
// ArticleUID is unique so enqueueing twice is a no-op.
type NewsletterQueueModel struct {
	Base
	ArticleUID  string           `json:"article_uid"  gorm:"type:varchar(191);uniqueIndex;not null"`
	ArticlePath string           `json:"article_path" gorm:"type:varchar(512);not null"`
	Title       string           `json:"title"`
	Summary     string           `json:"summary"      gorm:"type:text"`
	Tags        StringArray      `json:"tags"         gorm:"type:text"`
	Status      NewsletterStatus `json:"status"       gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts    int              `json:"attempts"     gorm:"not null;default:0"`
	LastError   string           `json:"last_error"   gorm:"type:text"`
	SentAt      *time.Time       `json:"sent_at"`
}

func (NewsletterQueueModel) TableName() string { return "newsletter_queue" }

// NewsletterDeliveryModel records that one queue entry reached one address,
// so a retried entry skips recipients already mailed.
type NewsletterDeliveryModel struct {
	ID      int64     `json:"id"       gorm:"primaryKey;autoIncrement"`
	QueueID string    `json:"queue_id" gorm:"type:char(36);not null;uniqueIndex:idx_newsletter_delivery"`
	Email   string    `json:"email"    gorm:"type:varchar(191);not null;uniqueIndex:idx_newsletter_delivery"`
	SentAt  time.Time `json:"sent_at"  gorm:"not null"`
}

func (NewsletterDeliveryModel) TableName() string { return "newsletter_deliveries" }
