package research

import "fmt"

// SearchError is returned when the search provider fails to serve a page
type SearchError struct {
	Query   string
	Message string
	Cause   error
}

func (e *SearchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("search %q: %s: %v", e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("search %q: %s", e.Query, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}
