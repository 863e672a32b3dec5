package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/libdb/internal/observability"
	"github.com/jonathan/libdb/internal/research"
	"github.com/jonathan/libdb/internal/types"
)

var (
	analyzeLanguage   string
	analyzeParentTag  string
	analyzeRepository string
	analyzeTimeout    time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/repo>",
	Short: "Classify one library",
	Long: `Run one analysis for a repository on the hosting domain and print the resulting
library details, or the failure the classifier produced.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeLanguage, "language", "l", "", "Library language: rust or javascript (required)")
	analyzeCmd.Flags().StringVar(&analyzeParentTag, "parent-tag", "", "Topic added to a successful result")
	analyzeCmd.Flags().StringVar(&analyzeRepository, "repository", "", "Repository URL (defaults to https://<hosting domain>/<owner/repo>)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "Maximum time to wait for the analysis to finish")
	_ = analyzeCmd.MarkFlagRequired("language")

	rootCmd.AddCommand(analyzeCmd)
}

// libraryFromArgs resolves the library identity and repository for an analysis
func libraryFromArgs(name, language, repository, host string) (types.LibraryReference, string, error) {
	lang, err := types.ParseLanguage(language)
	if err != nil {
		return types.LibraryReference{}, "", err
	}

	canonical, ok := research.RepositoryName("https://"+host+"/"+name, host)
	if !ok || canonical != name {
		return types.LibraryReference{}, "", fmt.Errorf("library name must be of the form owner/repo, got %q", name)
	}

	if repository == "" {
		repository = research.CanonicalRepository("https://"+host+"/"+name, host)
	}
	return types.LibraryReference{Name: name, Language: lang}, repository, nil
}

func runAnalyze(cmd *cobra.Command, args []string) (err error) {
	ref, repository, err := libraryFromArgs(args[0], analyzeLanguage, analyzeRepository, appConfig.Search.HostingDomain)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sys, stop, err := startSystem(ctx, requirements{classifier: true})
	if err != nil {
		return err
	}
	defer func() {
		if serr := stop(); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := sys.Analyze(ref, repository, analyzeParentTag); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	if err := sys.Quiesce(waitCtx); err != nil {
		return fmt.Errorf("analysis of %s did not finish: %w", ref, err)
	}

	library, err := sys.Library(ref)
	if err != nil {
		return err
	}
	details, err := library.Details(ctx)
	observability.NewPrinter(cmd.OutOrStdout()).PrintLibraryResult(ref, details, err)
	return nil
}
