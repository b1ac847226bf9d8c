package dto

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k"`
}

type SearchHitResponse struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Score      float64 `json:"score"`
}

type SearchResponse struct {
	Hits []SearchHitResponse `json:"hits"`
}

type RebuildIndexResponse struct {
	Indexed    int    `json:"indexed"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Status     string `json:"status"`
}
