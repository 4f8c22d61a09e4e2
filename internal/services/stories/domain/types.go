// Package domain defines story types and ports
package domain

// Story is one cached HackerNews story, field names as on the wire
type Story struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	Type        string `json:"type"`
}

// Sort orders accepted by List
const (
	SortScore    = "score"
	SortTime     = "time"
	SortComments = "comments"
)

// ListQuery carries pagination, filtering and the limiter identifier
type ListQuery struct {
	Page       int
	Limit      int
	Search     string
	Sort       string
	Type       string
	Identifier string
}

// ListResult is the paginated story page
// Total counts the full index before filtering so clients can size pagers
type ListResult struct {
	Stories []Story `json:"stories"`
	HasMore bool    `json:"hasMore"`
	Total   int     `json:"total"`
}
