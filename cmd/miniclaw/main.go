// Command miniclaw is the daemon CLI: a `gateway` subcommand runs the
// long-lived agent process wired to the configured chat channels.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mattdef/miniclaw-sub000/internal/config"
	"github.com/mattdef/miniclaw-sub000/internal/gateway"
	"github.com/mattdef/miniclaw-sub000/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig    string
	flagDebug     bool
	flagPIDFile   string
	flagCLI       bool
	flagWorkspace string
	flagProvider  string
	flagModel     string
	flagMetrics   string
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(gateway.ExitFailure)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "miniclaw",
		Short:         "miniclaw is a persistent personal AI agent daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.json (default ~/.miniclaw/config.json)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(buildGatewayCmd())
	root.AddCommand(buildVersionCmd())
	return root
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("miniclaw %s (%s)\n", version, commit)
		},
	}
}

func buildGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the agent daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runGateway())
			return nil
		},
	}
	cmd.Flags().StringVar(&flagPIDFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().BoolVar(&flagCLI, "cli", false, "attach an interactive stdin/stdout channel")
	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "workspace directory override")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider override (openai|local)")
	cmd.Flags().StringVar(&flagModel, "model", "", "model override for the selected provider")
	cmd.Flags().StringVar(&flagMetrics, "metrics-addr", "", "listen address for the Prometheus /metrics endpoint")
	return cmd
}

func runGateway() int {
	logger := observability.NewLogger(os.Stderr, flagDebug)
	slog.SetDefault(logger)

	cfg, err := config.Load(flagConfig, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return gateway.ExitFailure
	}
	applyFlags(cfg)

	if flagPIDFile != "" {
		if err := writePIDFile(flagPIDFile); err != nil {
			logger.Error("failed to write pid file", "path", flagPIDFile, "error", err)
			return gateway.ExitFailure
		}
		defer os.Remove(flagPIDFile)
	}

	var opts []gateway.Option
	if flagCLI {
		opts = append(opts, gateway.WithCLI(os.Stdin, os.Stdout))
	}

	gw, err := gateway.New(cfg, logger, opts...)
	if err != nil {
		logger.Error("failed to start gateway", "error", err)
		return gateway.ExitFailure
	}
	logger.Info("miniclaw gateway starting", "version", version, "workspace", cfg.Workspace, "provider", cfg.Provider)
	return gw.Run(context.Background())
}

// applyFlags overlays CLI flags, the highest layer of the precedence chain.
func applyFlags(cfg *config.Config) {
	if flagWorkspace != "" {
		cfg.Workspace = flagWorkspace
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		if cfg.Provider == "openai" {
			cfg.OpenAI.Model = flagModel
		} else {
			cfg.Local.Model = flagModel
		}
	}
	if flagMetrics != "" {
		cfg.Gateway.MetricsAddr = flagMetrics
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
