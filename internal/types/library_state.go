package types

// LibraryState is the closed set of states a library record can be in: Unknown,
// Analyzed or Failed. The unexported marker keeps other packages from adding variants.
type LibraryState interface {
	libraryState()
}

// Unknown is the initial state; no analysis has completed yet
type Unknown struct{}

// Analyzed holds the outcome of a successful classification
type Analyzed struct {
	Repository  string   `json:"repository"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// Failed holds the message of the latest failed analysis
type Failed struct {
	Message string `json:"message"`
}

func (Unknown) libraryState()  {}
func (Analyzed) libraryState() {}
func (Failed) libraryState()   {}

// State kind names used by persistence and API payloads
const (
	StateUnknown  = "unknown"
	StateAnalyzed = "analyzed"
	StateFailed   = "failed"
)

// StateKind returns the kind name of a state
func StateKind(s LibraryState) string {
	switch s.(type) {
	case Analyzed:
		return StateAnalyzed
	case Failed:
		return StateFailed
	default:
		return StateUnknown
	}
}
