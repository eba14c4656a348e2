package transfer

type PostingPatterns struct {
	ByHour         map[int]int    `json:"by_hour"`
	ByDayOfWeek    map[int]int    `json:"by_day_of_week"`
	ByPlatform     map[string]int `json:"by_platform"`
	MostActiveHour int            `json:"most_active_hour"`
	MostActiveDay  int            `json:"most_active_day"`
	TotalPosts     int            `json:"total_posts"`
}

type OptimalTime struct {
	DayOfWeek int     `json:"day_of_week"`
	Hour      int     `json:"hour"`
	Platform  string  `json:"platform"`
	Score     float64 `json:"score"`
}

type ContentTypeStats struct {
	ContentType   string  `json:"content_type"`
	Count         int     `json:"count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

type TopPost struct {
	ItemID     int64   `json:"item_id"`
	Platform   string  `json:"platform"`
	Engagement float64 `json:"engagement"`
}

type ContentPerformance struct {
	ByContentType []ContentTypeStats `json:"by_content_type"`
	TopPosts      []TopPost          `json:"top_posts"`
}
