package models

// SearchResultItem is one result parsed out of the documentation-search text.
type SearchResultItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// FetchedDoc is the cleaned, length-capped text of one documentation page.
type FetchedDoc struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// ContextSource records where the composer's documentation context came from.
type ContextSource string

const (
	ContextNone    ContextSource = "none"
	ContextSearch  ContextSource = "search"
	ContextFetched ContextSource = "fetched"
)
