package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/artiffex/pkg/config"
	"github.com/ravi-parthasarathy/artiffex/pkg/generate"
	"github.com/ravi-parthasarathy/artiffex/pkg/imagescript"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"

	// Register all LLM providers via their init() functions.
	_ "github.com/ravi-parthasarathy/artiffex/pkg/llm/providers"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the settings resolved before any subcommand runs.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "artiffex",
		Short: "Artiffex: branching image-generation workflows",
		Long: `Artiffex builds images as a forest of steps. A source step produces an
image from a prompt, an ImageScript or an upload; every operation step
re-generates its parent's image with a transformation applied.

Workflows can be described in Graphviz DOT and run from the command line, or
edited interactively through the HTTP API started by "serve".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(compileCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(kindsCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(runCmd(a))
	root.AddCommand(serveCmd(a))
	return root
}

// setup loads the config, applies flag overrides and installs the logger.
func (a *app) setup(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = strings.ToLower(a.logLevel)
	}
	if a.logFormat != "" {
		cfg.LogFormat = strings.ToLower(a.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) service() (*generate.LLMService, error) {
	svc, err := generate.NewFromModels(a.cfg.TextModel, a.cfg.ImageModel, generate.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("generation service: %w", err)
	}
	return svc, nil
}

// ─── compile ──────────────────────────────────────────────────────────────────

func compileCmd() *cobra.Command {
	var lint bool

	cmd := &cobra.Command{
		Use:   "compile [script.is]",
		Short: "Compile an ImageScript into a prompt (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if lint {
				for _, e := range imagescript.Lint(src) {
					fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), imagescript.Compile(src))
			return nil
		},
	}
	cmd.Flags().BoolVar(&lint, "lint", false, "also print lint findings to stderr")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [script.is]",
		Short: "Report editor problems in an ImageScript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			errs := imagescript.Lint(src)
			for _, e := range errs {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d lint problem(s)", len(errs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK: no problems")
			return nil
		},
	}
}

// ─── kinds ────────────────────────────────────────────────────────────────────

func kindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List every node kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, k := range workflow.AllKinds() {
				role := "op"
				if k.IsSource() {
					role = "source"
				}
				fmt.Fprintf(w, "%-24s  %-6s  %s\n", k, role, k.Title())
			}
			return nil
		},
	}
}

// ─── validate ─────────────────────────────────────────────────────────────────

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.dot>",
		Short: "Validate a workflow plan without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			if err := p.ValidateErr(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: plan %q is valid (%d steps, %d edges)\n",
				p.Name, len(p.Steps), len(p.Edges))
			return nil
		},
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// readSource reads the named file, or stdin when no file or "-" is given.
func readSource(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(b), nil
}

func loadPlan(path string) (*workflow.Plan, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := workflow.ParsePlan(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return p, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
