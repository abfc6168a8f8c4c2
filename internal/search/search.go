// Package search provides full-text search over todos and resolutions, with
// Meilisearch as the primary backend and Postgres FTS as the fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTodo       ResultType = "todo"
	ResultResolution ResultType = "resolution"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	ProjectName string     `json:"projectName,omitempty"`
	FilePath    string     `json:"filePath,omitempty"`
}

// Query describes a search request. Results are always scoped to one user.
type Query struct {
	Text          string
	UserID        string
	FilterType    ResultType // empty = all types
	FilterProject string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TodoRecord is the data we index for a todo marker.
type TodoRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ProjectName string `json:"projectName"`
	Type        string `json:"type"`
	CustomTag   string `json:"customTag"`
	Content     string `json:"content"`
	FilePath    string `json:"filePath"`
}

// ResolutionRecord is the data we index for a resolution.
type ResolutionRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
	Resolved bool   `json:"resolved"`
}
