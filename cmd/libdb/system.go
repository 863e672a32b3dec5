package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/libdb/internal/config"
	"github.com/jonathan/libdb/internal/index"
	"github.com/jonathan/libdb/internal/llm"
	"github.com/jonathan/libdb/internal/pipeline"
	"github.com/jonathan/libdb/internal/research"
	"github.com/jonathan/libdb/internal/store"
)

// shutdownTimeout bounds how long a command waits for in-flight work on exit
const shutdownTimeout = 30 * time.Second

// requirements names the collaborators a command cannot run without
type requirements struct {
	classifier bool
	search     bool
}

// newCollaborators builds the store, index and external services. The returned
// function releases whatever the system does not close itself. Tests replace it.
var newCollaborators = buildCollaborators

func buildCollaborators(ctx context.Context, cfg *config.Config, logger *slog.Logger, need requirements) (pipeline.Collaborators, func(), error) {
	if need.classifier {
		if err := cfg.RequireLLM(); err != nil {
			return pipeline.Collaborators{}, nil, err
		}
	}
	if need.search {
		if err := cfg.RequireSearch(); err != nil {
			return pipeline.Collaborators{}, nil, err
		}
	}

	c := pipeline.Collaborators{Logger: logger}
	var closers []func() error
	release := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("Failed to release collaborator", slog.Any("error", err))
			}
		}
	}
	fail := func(err error) (pipeline.Collaborators, func(), error) {
		release()
		if c.Store != nil {
			c.Store.Close() //nolint:errcheck
		}
		if c.Index != nil {
			c.Index.Close() //nolint:errcheck
		}
		return pipeline.Collaborators{}, nil, err
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to open store: %w", err))
	}
	c.Store = st

	idx, err := index.New(logger)
	if err != nil {
		return fail(fmt.Errorf("failed to create search index: %w", err))
	}
	c.Index = idx

	if cfg.RequireLLM() == nil {
		client, err := llm.NewClient(ctx, llm.NewConfig(cfg.LLM.Model, cfg.LLM.Temperature), cfg.LLM.APIKey)
		if err != nil {
			return fail(fmt.Errorf("failed to create LLM client: %w", err))
		}
		closers = append(closers, client.Close)
		c.Classifier = llm.NewClassifier(client)
	} else {
		logger.Warn("No LLM API key configured; analyses will fail")
	}

	if cfg.RequireSearch() == nil {
		searcher, err := research.NewCustomSearch(ctx, cfg.Search.APIKey, cfg.Search.EngineID, cfg.Search.PageSize, cfg.Search.MaxPages)
		if err != nil {
			return fail(fmt.Errorf("failed to create search client: %w", err))
		}
		c.Searcher = searcher
	} else {
		logger.Warn("No search credentials configured; discoveries will fail")
	}

	return c, release, nil
}

// startSystem starts the pipeline for one command. stop waits for in-flight work,
// then releases every resource.
func startSystem(ctx context.Context, need requirements) (*pipeline.System, func() error, error) {
	c, release, err := newCollaborators(ctx, appConfig, appLogger, need)
	if err != nil {
		return nil, nil, err
	}

	sys, err := pipeline.New(ctx, appConfig, c)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	stop := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := sys.Shutdown(shutdownCtx)
		release()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("work still in flight after %s: %w", shutdownTimeout, err)
		}
		return err
	}
	return sys, stop, nil
}
