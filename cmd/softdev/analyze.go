package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/softdev/internal/softdev"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		project          string
		depth            string
		excludeDirs      []string
		excludePatterns  []string
		respectGitignore bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <root>",
		Short: "Build or update the knowledge graph of a source tree",
		Long: `Scan a C source tree and store its graph. Files whose content did not
change since the last run are skipped.

Examples:
  softdev analyze ~/src/redis
  softdev analyze . --project kernel --depth relationships
  softdev analyze . --exclude-dir third_party --exclude-pattern 'gen/**'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			d, err := softdev.ParseDepth(depth)
			if err != nil {
				return err
			}
			if project == "" {
				project = filepath.Base(root)
			}
			return opts.withService(func(svc *softdev.Service, _ *slog.Logger) error {
				res, err := svc.AnalyzeProject(cmd.Context(), softdev.ProjectConfig{
					ProjectID:        project,
					RootPath:         root,
					Depth:            d,
					ExcludeDirs:      excludeDirs,
					ExcludePatterns:  excludePatterns,
					RespectGitignore: respectGitignore,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "",
		"Project identifier (default: the root directory name)")
	cmd.Flags().StringVar(&depth, "depth", "",
		"Analysis depth: structure, signatures, relationships or full (default: config)")
	cmd.Flags().StringSliceVar(&excludeDirs, "exclude-dir", nil,
		"Directory names to skip in addition to the defaults")
	cmd.Flags().StringSliceVar(&excludePatterns, "exclude-pattern", nil,
		"Glob patterns of files to skip")
	cmd.Flags().BoolVar(&respectGitignore, "gitignore", false,
		"Skip paths ignored by the root .gitignore")
	return cmd
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <project>",
		Short: "Re-run a project's last analysis and drop vanished files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *softdev.Service, _ *slog.Logger) error {
				res, err := svc.Refresh(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Show node counts and whether the graph is stale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *softdev.Service, _ *slog.Logger) error {
				st, err := svc.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List indexed projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *softdev.Service, _ *slog.Logger) error {
				projects, err := svc.ListProjects()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					_, err := fmt.Fprintf(out, "No projects in %s\n", svc.DataDir())
					return err
				}
				for _, p := range projects {
					if _, err := fmt.Fprintf(out, "%-24s %s  %s\n",
						p.ProjectID, p.UpdatedAt.Local().Format(time.DateTime), p.Path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <project>",
		Short: "Re-index a project's files as they change",
		Long: `Watch an analyzed project's root and re-index changed .c and .h files.
Deleted files are removed from the graph. Stops on Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return opts.withService(func(svc *softdev.Service, logger *slog.Logger) error {
				logger.Info("watching project", "project", args[0])
				return svc.Watch(ctx, args[0])
			})
		},
	}
}

// signalContext ends on interrupt or termination.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
