package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relforge/relforge/internal/logging"
	"github.com/relforge/relforge/internal/orchestrator"
	"github.com/relforge/relforge/internal/publish"
	"github.com/relforge/relforge/internal/registry"
	"github.com/relforge/relforge/internal/staging"
	"github.com/relforge/relforge/internal/toolchain"
	"github.com/relforge/relforge/internal/version"
)

const defaultLogLevel = "info"

// registryFileName is the optional project-local registry override.
const registryFileName = ".relforge.yaml"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	projectDir   string
	distDir      string
	scratchDir   string
	configFile   string
	jobs         int
	onConflict   string
	releaseURL   string
	tokenAccount string
	skipPublish  bool
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	logLevel := defaultLogLevel
	var opts rootOptions

	root := &cobra.Command{
		Use:           "relforge <config-name> [<config-name> ...]",
		Short:         "Build release artifacts per configuration and publish them to a release target",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, logger, opts, args)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		return nil
	}

	root.Flags().StringVar(&opts.projectDir, "project", ".", "Project root containing version.json and the toolchain workspace")
	root.Flags().StringVar(&opts.distDir, "dist", "dist", "Directory receiving staged release artifacts")
	root.Flags().StringVar(&opts.scratchDir, "staging", "staging", "Scratch directory for per-configuration staging trees")
	root.Flags().StringVar(&opts.configFile, "config-file", "", "Registry file overriding the built-in configurations")
	root.Flags().IntVar(&opts.jobs, "jobs", 0, "Maximum concurrent builds (0 = number of CPUs)")
	root.Flags().StringVar(&opts.onConflict, "on-conflict", string(publish.ConflictSkip), "Policy for assets already present at the release target (skip, overwrite)")
	root.Flags().StringVar(&opts.releaseURL, "release-url", "", "Release target upload endpoint")
	root.Flags().StringVar(&opts.tokenAccount, "token-account", "", "Keyring account used when "+publish.TokenEnvVar+" is unset")
	root.Flags().BoolVar(&opts.skipPublish, "skip-publish", false, "Stage artifacts without uploading them")

	root.AddCommand(newListCommand(&opts))
	return root
}

func runPipeline(cmd *cobra.Command, logger *slog.Logger, opts rootOptions, names []string) error {
	ver, err := version.Load(opts.projectDir)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(opts)
	if err != nil {
		return err
	}

	collector := &staging.Collector{
		Logger:     logger.With("component", "staging"),
		ScratchDir: resolveDir(opts.projectDir, opts.scratchDir),
		DistDir:    resolveDir(opts.projectDir, opts.distDir),
		AppName:    reg.App(),
		Version:    ver,
		Archiver:   &staging.ExternalArchiver{Logger: logger.With("component", "archive")},
	}

	var publisher *publish.Publisher
	if !opts.skipPublish {
		policy, err := publish.ParseConflictPolicy(opts.onConflict)
		if err != nil {
			return err
		}
		token, err := publish.Token(opts.tokenAccount)
		if err != nil {
			return err
		}
		host, err := publish.NewHTTPReleaseHost(opts.releaseURL, token)
		if err != nil {
			return err
		}
		publisher = &publish.Publisher{
			Logger:     logger.With("component", "publish"),
			Host:       host,
			OnConflict: policy,
		}
	}

	orch := &orchestrator.Orchestrator{
		Logger:      logger.With("component", "orchestrator"),
		Registry:    reg,
		Compiler:    &toolchain.Cargo{Logger: logger.With("component", "toolchain")},
		Collector:   collector,
		Publisher:   publisher,
		ProjectDir:  opts.projectDir,
		Jobs:        opts.jobs,
		SkipPublish: opts.skipPublish,
	}

	summary, runErr := orch.Run(cmd.Context(), names)
	fmt.Fprint(cmd.OutOrStdout(), summary.Render())
	return runErr
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered build configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(*opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				cfg, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", cfg.Name, cfg.Target, cfg.Archive)
			}
			return nil
		},
	}
}

func loadRegistry(opts rootOptions) (*registry.Registry, error) {
	if opts.configFile != "" {
		return registry.LoadFile(opts.configFile)
	}
	local := filepath.Join(opts.projectDir, registryFileName)
	if _, err := os.Stat(local); err == nil {
		return registry.LoadFile(local)
	}
	return registry.Embedded()
}

func resolveDir(projectDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(projectDir, dir)
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
