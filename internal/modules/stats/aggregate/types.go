package aggregate

type siteInfo struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type aggregateData struct {
	Site       siteInfo        `json:"site"`
	Categories []categoryCount `json:"categories"`
	Tags       []string        `json:"tags"`
	Count      int             `json:"count"`
}

// statData is the admin dashboard counters. Relational counters are nil
// without a database.
type statData struct {
	Documents  map[string]int   `json:"documents"`
	Comments   map[string]int64 `json:"comments,omitempty"`
	Subscriber *int64           `json:"subscribers,omitempty"`
	Newsletter *int64           `json:"newsletter_pending,omitempty"`
	TodayViews *int64           `json:"today_views,omitempty"`
	PendingIO  int              `json:"pending_writes"`
}
