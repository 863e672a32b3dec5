package llm

import "fmt"

// ClassificationError is returned when the classifier could not be reached or refused the request
type ClassificationError struct {
	Message string
	Cause   error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

// ResponseShapeError is returned when the classifier answered with text that is not the
// expected {"description", "tags"} object
type ResponseShapeError struct {
	Raw   string
	Cause error
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("unexpected classifier response: %v", e.Cause)
}

func (e *ResponseShapeError) Unwrap() error {
	return e.Cause
}
