package models

import "time"

// VisitModel is one page view.
type VisitModel struct {
	ID         int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Path       string    `json:"path"        gorm:"type:varchar(512);not null;index"`
	ArticleUID string    `json:"article_uid" gorm:"type:varchar(191);index"`
	Referrer   string    `json:"referrer"    gorm:"type:varchar(512)"`
	UserAgent  string    `json:"user_agent"  gorm:"type:varchar(512)"`
	IPHash     string    `json:"-"           gorm:"type:char(64);index"`
	VisitedAt  time.Time `json:"visited_at"  gorm:"not null;index"`
}

func (VisitModel) TableName() string { return "visits" }
