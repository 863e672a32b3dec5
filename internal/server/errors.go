package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/pipeline"
	"github.com/jonathan/libdb/internal/validation"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var invalid *ErrValidation
	var invalidBody *validation.Error
	var analysis *pipeline.AnalysisFailure
	var discovery *pipeline.DiscoveryFailures

	switch {
	case errors.As(err, &invalid),
		errors.As(err, &invalidBody),
		errors.Is(err, pipeline.ErrTopicNotLowercase),
		errors.Is(err, pipeline.ErrEmptyTopic),
		errors.Is(err, pipeline.ErrInvalidLibrary):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNotYetAnalysed):
		return http.StatusNotFound
	case errors.As(err, &discovery):
		return http.StatusConflict
	case errors.As(err, &analysis):
		return http.StatusUnprocessableEntity
	case errors.Is(err, actor.ErrMailboxClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
