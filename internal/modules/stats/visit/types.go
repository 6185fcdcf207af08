package visit

import "time"

// Hit is one page view reported by a client.
type Hit struct {
	Path       string `json:"path"        binding:"required"`
	ArticleUID string `json:"article_uid"`
	Referrer   string `json:"referrer"`
}

// SummaryQuery bounds the admin summary. Zero times are open ends.
type SummaryQuery struct {
	From  *time.Time `form:"from"  time_format:"2006-01-02"`
	To    *time.Time `form:"to"    time_format:"2006-01-02"`
	Limit int        `form:"limit"`
}

// PathCount is the traffic of one path.
type PathCount struct {
	Path     string `json:"path"`
	Views    int64  `json:"views"`
	Visitors int64  `json:"visitors"`
	Article  string `json:"article_uid,omitempty"`
}
