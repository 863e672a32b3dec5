package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/libdb/internal/types"
)

var (
	// ErrTopicNotLowercase is returned when a topic is referenced by a name that is not in
	// canonical lowercase form. No topic is created.
	ErrTopicNotLowercase = errors.New("topic name must be lowercase")
	// ErrEmptyTopic is returned for an empty topic name
	ErrEmptyTopic = errors.New("topic name must not be empty")
	// ErrInvalidLibrary is returned for a library reference without a name or with an
	// unsupported language
	ErrInvalidLibrary = errors.New("invalid library reference")
	// ErrNotYetAnalysed is returned when reading a library no analysis has completed for
	ErrNotYetAnalysed = errors.New("not yet analysed")
	// ErrNotRelevant is the failure recorded when the classifier returns no tags
	ErrNotRelevant = errors.New("not relevant to the associated language")
)

// AnalysisFailure is returned when reading a library whose latest analysis failed
type AnalysisFailure struct {
	Library types.LibraryReference
	Message string
}

func (e *AnalysisFailure) Error() string {
	return fmt.Sprintf("analysis of %s failed: %s", e.Library, e.Message)
}

// DiscoveryFailures is returned when reading the libraries of a topic that has recorded
// at least one discovery failure. It withholds whatever libraries were found.
type DiscoveryFailures struct {
	Topic    string
	Failures []string
}

func (e *DiscoveryFailures) Error() string {
	return fmt.Sprintf("discovery for topic %q failed: %s", e.Topic, strings.Join(e.Failures, "; "))
}
