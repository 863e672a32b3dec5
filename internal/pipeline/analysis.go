package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/libdb/internal/prompts"
	"github.com/jonathan/libdb/internal/types"
)

// Classifier is the classification collaborator
type Classifier interface {
	Classify(ctx context.Context, req types.ClassificationRequest) (types.Classification, error)
}

// Analyze starts one analysis run for ref, an external trigger. A non-empty parentTag is
// added to the topics of a successful result and must be a valid topic name.
func (s *System) Analyze(ref types.LibraryReference, repository, parentTag string) error {
	if err := validateLibrary(ref); err != nil {
		return err
	}
	if parentTag != "" {
		if err := validateTopic(parentTag); err != nil {
			return err
		}
	}
	s.startAnalysis(ref, repository, parentTag)
	return nil
}

// startAnalysis spawns one analysis run. The caller does not wait for it.
func (s *System) startAnalysis(ref types.LibraryReference, repository, parentTag string) {
	runID := uuid.NewString()
	sender := "analysis:" + ref.Key()
	s.tracker.Go(s.logger, sender, func() {
		s.runAnalysis(ref, repository, parentTag, runID, s.Logger(sender))
	})
}

// runAnalysis classifies the library and reports exactly one outcome to it
func (s *System) runAnalysis(ref types.LibraryReference, repository, parentTag, runID string, log Logger) {
	library, err := s.Library(ref)
	if err != nil {
		log.Errorf("Failed to resolve library: %v", err)
		return
	}

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		log.Warnf("Analysis cancelled before it started: %v", err)
		return
	}
	defer s.sem.Release(1)

	log.Debugf("Analysis run %s classifying %s", runID, repository)
	tags, description, err := s.classify(s.ctx, ref, repository, parentTag)
	if s.ctx.Err() != nil {
		log.Warnf("Analysis cancelled: %v", s.ctx.Err())
		return
	}

	if err != nil {
		log.Warnf("Analysis run %s failed: %v", runID, err)
		if ferr := library.AnalysisFailed(s.ctx, err.Error()); ferr != nil {
			log.Errorf("Failed to report analysis failure: %v", ferr)
		}
		return
	}
	if serr := library.AnalysisSucceeded(s.ctx, repository, description, tags); serr != nil {
		log.Errorf("Failed to report analysis result: %v", serr)
	}
}

// classify asks the classifier about one library and returns the final topic tags
func (s *System) classify(ctx context.Context, ref types.LibraryReference, repository, parentTag string) ([]string, string, error) {
	if s.classifier == nil {
		return nil, "", fmt.Errorf("classifier is not configured")
	}
	segments, err := prompts.Analysis(repository, ref.Language.String())
	if err != nil {
		return nil, "", fmt.Errorf("failed to build analysis prompt: %w", err)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	temperature := s.cfg.LLM.Temperature
	classification, err := s.classifier.Classify(ctx, types.ClassificationRequest{
		Segments:    segments,
		Model:       s.cfg.LLM.Model,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, "", err
	}

	tags, err := finalTags(classification.Tags, parentTag)
	if err != nil {
		return nil, "", err
	}
	return tags, classification.Description, nil
}

// finalTags lower-cases the classifier tags and appends the parent tag. No usable tag
// means the library is not relevant to its language.
func finalTags(tags []string, parentTag string) ([]string, error) {
	out := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotRelevant
	}
	if parentTag != "" {
		out = append(out, parentTag)
	}
	return types.TagSet(out), nil
}
