package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/libdb/internal/observability"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover <topic>",
	Short: "Discover and classify the libraries of a topic",
	Long: `Run one discovery for a lowercase topic name in-process, wait until every analysis it
started has finished, then print the topic and the details of each library found.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Minute, "Maximum time to wait for the discovery to finish")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	ctx := cmd.Context()

	sys, stop, err := startSystem(ctx, requirements{classifier: true, search: true})
	if err != nil {
		return err
	}
	defer func() {
		if serr := stop(); serr != nil && err == nil {
			err = serr
		}
	}()

	topic, err := sys.Topic(name)
	if err != nil {
		return err
	}
	topic.DiscoverLibraries()

	waitCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()
	if err := sys.Quiesce(waitCtx); err != nil {
		return fmt.Errorf("discovery of %q did not finish: %w", name, err)
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	libraries, err := topic.Libraries(ctx)
	printer.PrintTopicResult(name, libraries, err)

	for _, ref := range libraries {
		library, err := sys.Library(ref)
		if err != nil {
			return err
		}
		details, err := library.Details(ctx)
		printer.PrintLibraryResult(ref, details, err)
	}
	return nil
}
