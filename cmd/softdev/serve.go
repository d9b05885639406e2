package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	sdserver "github.com/HendryAvila/softdev/internal/server"
	"github.com/HendryAvila/softdev/internal/softdev"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdin/stdout.

With --watch, the named projects are re-indexed as their files change
while the server runs. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return opts.withService(func(svc *softdev.Service, logger *slog.Logger) error {
				return serve(ctx, svc, logger, watch)
			})
		},
	}
	cmd.Flags().StringSliceVar(&watch, "watch", nil,
		"Projects to re-index on file changes while serving")
	return cmd
}

// serve runs the stdio server and one watcher per project until the
// client disconnects or ctx ends.
func serve(ctx context.Context, svc *softdev.Service, logger *slog.Logger, watch []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdio := server.NewStdioServer(sdserver.New(svc))
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	for _, project := range watch {
		g.Go(func() error {
			logger.Info("watching project", "project", project)
			return svc.Watch(gctx, project)
		})
	}
	return g.Wait()
}
