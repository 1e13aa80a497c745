package model

// SearchHit is one filtered, ranked search result. Rank 0 is the most trusted
// source class, 5 the least.
type SearchHit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

// PageContent is the cleaned plain text of one scraped page. Success is false
// when the page could not be fetched; such pages are skipped by extraction.
type PageContent struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Success bool   `json:"success"`
}
