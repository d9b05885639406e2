package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/softdev/internal/config"
	sdserver "github.com/HendryAvila/softdev/internal/server"
	"github.com/HendryAvila/softdev/internal/softdev"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string

	// logOutput receives log records; stdout stays free for MCP and results.
	logOutput io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logOutput: os.Stderr}

	cmd := &cobra.Command{
		Use:   "softdev",
		Short: "Persistent knowledge graph of C codebases",
		Long: `softdev scans C source trees into a graph of concepts, directories,
files, functions and structs, stores it per project in SQLite and serves
it to AI coding tools over MCP.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "softdev": {
        "command": "softdev",
        "args": ["serve"]
      }
    }
  }`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Config file (default: "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "",
		"Directory holding one database per project (overrides data_dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn or error (overrides log_level)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAnalyzeCmd(opts),
		newRefreshCmd(opts),
		newStatusCmd(opts),
		newProjectsCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the config file and applies the flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// service builds the graph service from the effective configuration.
// The caller closes it.
func (o *rootOptions) service() (*softdev.Service, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(o.logOutput, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	scfg, err := cfg.ServiceConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	return softdev.New(scfg), logger, nil
}

// withService runs fn against a fresh service and closes it afterwards.
func (o *rootOptions) withService(fn func(svc *softdev.Service, logger *slog.Logger) error) error {
	svc, logger, err := o.service()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("closing indexes", "error", cerr)
		}
	}()
	return fn(svc, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "softdev v%s\n", sdserver.Version)
			return err
		},
	}
}
