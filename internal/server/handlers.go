package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/libdb/internal/pipeline"
	"github.com/jonathan/libdb/internal/research"
	"github.com/jonathan/libdb/internal/types"
)

// sseKeepAlive is the interval of comment lines on an idle log stream
const sseKeepAlive = 15 * time.Second

// AnalyzeRequest represents the request body for POST /libraries/analyze
type AnalyzeRequest struct {
	Name       string `json:"name" validate:"required"`
	Language   string `json:"language" validate:"required"`
	Repository string `json:"repository,omitempty" validate:"omitempty,http_url"`
	ParentTag  string `json:"parent_tag,omitempty"`
}

// AcceptedResponse acknowledges a fire-and-forget trigger
type AcceptedResponse struct {
	Status     string                  `json:"status"`
	Topic      string                  `json:"topic,omitempty"`
	Library    *types.LibraryReference `json:"library,omitempty"`
	Repository string                  `json:"repository,omitempty"`
}

// TopicLibrariesResponse is the body of GET /topics/{name}/libraries
type TopicLibrariesResponse struct {
	Topic     string                   `json:"topic"`
	Libraries []types.LibraryReference `json:"libraries"`
}

// TopicFailuresResponse replaces TopicLibrariesResponse once the topic has recorded a
// discovery failure
type TopicFailuresResponse struct {
	Topic    string   `json:"topic"`
	Failures []string `json:"failures"`
}

// LibraryFailureResponse is the body returned for a library whose analysis failed
type LibraryFailureResponse struct {
	Library types.LibraryReference `json:"library"`
	State   string                 `json:"state"`
	Error   string                 `json:"error"`
}

// SearchResponse is the body of GET /search
type SearchResponse struct {
	Query   string                   `json:"query"`
	Results []types.LibraryReference `json:"results"`
}

func (s *Server) handleCatalogLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := s.system.Catalog().Libraries(r.Context())
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"libraries": libraries})
}

func (s *Server) handleCatalogTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.system.Catalog().Topics(r.Context())
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"topics": topics})
}

// handleDiscover starts a discovery run for the topic and returns without waiting
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	topic, err := s.system.Topic(name)
	if err != nil {
		s.failResponse(w, err)
		return
	}

	topic.DiscoverLibraries()
	s.events.Infof("Discovery of topic %q requested", name)
	s.jsonResponse(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Topic: name})
}

func (s *Server) handleTopicLibraries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	topic, ok, err := s.system.LookupTopic(r.Context(), name)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if !ok {
		s.jsonResponse(w, http.StatusOK, TopicLibrariesResponse{Topic: name, Libraries: []types.LibraryReference{}})
		return
	}

	libraries, err := topic.Libraries(r.Context())
	var failures *pipeline.DiscoveryFailures
	switch {
	case errors.As(err, &failures):
		s.jsonResponse(w, HTTPStatus(err), TopicFailuresResponse{Topic: name, Failures: failures.Failures})
	case err != nil:
		s.failResponse(w, err)
	default:
		if libraries == nil {
			libraries = []types.LibraryReference{}
		}
		s.jsonResponse(w, http.StatusOK, TopicLibrariesResponse{Topic: name, Libraries: libraries})
	}
}

// handleAnalyze starts one analysis run for the library named in the body
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.failResponse(w, err)
		return
	}

	language, err := types.ParseLanguage(req.Language)
	if err != nil {
		s.failResponse(w, &ErrValidation{Field: "language", Message: err.Error()})
		return
	}

	host := s.system.Config().Search.HostingDomain
	name, ok := research.RepositoryName("https://"+host+"/"+req.Name, host)
	if !ok || name != req.Name {
		s.failResponse(w, &ErrValidation{Field: "name", Message: "must be of the form owner/repo"})
		return
	}

	repository := req.Repository
	if repository == "" {
		repository = research.CanonicalRepository("https://"+host+"/"+name, host)
	}

	ref := types.LibraryReference{Name: name, Language: language}
	if err := s.system.Analyze(ref, repository, req.ParentTag); err != nil {
		s.failResponse(w, err)
		return
	}

	s.events.Infof("Analysis of %s requested", ref)
	s.jsonResponse(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Library: &ref, Repository: repository})
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	language, err := types.ParseLanguage(chi.URLParam(r, "language"))
	if err != nil {
		s.failResponse(w, &ErrValidation{Field: "language", Message: err.Error()})
		return
	}
	ref := types.LibraryReference{
		Name:     chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo"),
		Language: language,
	}

	library, ok, err := s.system.LookupLibrary(r.Context(), ref)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if !ok {
		s.failResponse(w, pipeline.ErrNotYetAnalysed)
		return
	}

	details, err := library.Details(r.Context())
	var failure *pipeline.AnalysisFailure
	switch {
	case errors.As(err, &failure):
		s.jsonResponse(w, HTTPStatus(err), LibraryFailureResponse{
			Library: ref,
			State:   types.StateFailed,
			Error:   failure.Message,
		})
	case err != nil:
		s.failResponse(w, err)
	default:
		s.jsonResponse(w, http.StatusOK, details)
	}
}

// handleSearch runs a full-text query over analysed libraries
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var language types.Language
	if raw := r.URL.Query().Get("language"); raw != "" {
		parsed, err := types.ParseLanguage(raw)
		if err != nil {
			s.failResponse(w, &ErrValidation{Field: "language", Message: err.Error()})
			return
		}
		language = parsed
	}

	limit, ok := s.queryInt(w, r, "limit")
	if !ok {
		return
	}

	results, err := s.system.Search(r.Context(), q, language, limit)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if results == nil {
		results = []types.LibraryReference{}
	}
	s.jsonResponse(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}

// handleLogs returns the most recent aggregated log records, oldest first
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit")
	if !ok {
		return
	}

	records, err := s.system.Logs().Recent(r.Context(), limit)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if records == nil {
		records = []pipeline.Record{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"records": records})
}

// handleLogStream streams aggregated log records as they arrive
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the headers go out so no record after them is missed
	records, cancel := s.system.Logs().Subscribe()
	defer cancel()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := sse.WriteKeepAlive(); err != nil {
				return
			}
		case record, ok := <-records:
			if !ok {
				sse.WriteError("log stream closed")
				return
			}
			if err := sse.WriteEvent("log", record); err != nil {
				return
			}
		}
	}
}

// queryInt parses an optional non-negative integer query parameter. It writes a 400
// response and returns false when the value is malformed.
func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.failResponse(w, &ErrValidation{Field: key, Message: "must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
