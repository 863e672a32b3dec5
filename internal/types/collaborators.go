package types

// SearchParams is a request to the external search collaborator
type SearchParams struct {
	Query          string   `json:"query"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	IncludeImages  bool     `json:"include_images"`
	AdvancedAnswer bool     `json:"advanced_answer"`
}

// SearchResult is one hit returned by the search collaborator
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ClassificationRequest is a single user-role message, made of text segments, sent to
// the external classifier.
type ClassificationRequest struct {
	Segments    []string `json:"segments"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// Classification is the structured shape expected back from the classifier
type Classification struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
