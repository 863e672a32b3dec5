package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/libdb/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start the pipeline and an HTTP server that exposes the catalog, triggers discoveries and analyses, and streams the aggregated log.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sys, stop, err := startSystem(ctx, requirements{})
	if err != nil {
		return err
	}

	srv := server.New(sys, appLogger)
	serveErr := srv.Start(ctx)
	return errors.Join(serveErr, stop())
}
