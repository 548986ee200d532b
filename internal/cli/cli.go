// Package cli implements the engrave command tree: the root command engraves
// one image file into another and the serve subcommand runs the HTTP service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soypat/engrave"
	"github.com/soypat/engrave/filters"
	"github.com/soypat/engrave/imageio"
	"github.com/soypat/engrave/internal/config"
	"github.com/soypat/engrave/internal/logging"
	"github.com/soypat/engrave/internal/server"
	"github.com/soypat/engrave/kernel"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes used by [ExitError].
const (
	ExitFailure = 1 // I/O and runtime failures.
	ExitUsage   = 2 // Invalid flags, arguments or configuration.
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) error {
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf(format, args...)}
}

// Execute runs the command tree with args. Every non-nil error it returns is
// an *ExitError.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Cobra reports unknown commands and flags this way.
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

type rootOptions struct {
	neighbors  string
	add        float64
	mult       float64
	invert     bool
	gray       bool
	workers    int
	preset     string
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the engrave command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "engrave [flags] INPUT OUTPUT",
		Short: "Turn an image into something resembling an engraving",
		Long: `Engrave replaces every pixel by an offset and scaled difference between
the pixel and the weighted average of its neighbors.

The neighbor code is 9 digits in row-major order over the 3x3 neighborhood:
0 excludes the neighbor, 1 gives it weight 1 and 2 gives it weight sqrt(2).
The output format is chosen by the OUTPUT file extension.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usageError("expected INPUT and OUTPUT file arguments, got %d argument(s)", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat, stderr)
			if err != nil {
				return usageError("%v", err)
			}
			engrave.SetLogger(logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngrave(cmd, opts, args[0], args[1])
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	def := filters.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&opts.neighbors, "neighbors", "n", kernel.DefaultCode, "Distances to the neighbors, 9 digits of 0, 1 or 2.")
	flags.Float64VarP(&opts.add, "add", "a", def.Add, "Brightness offset (0 to 255).")
	flags.Float64VarP(&opts.mult, "mult", "m", def.Mult, "Contrast multiplier.")
	flags.BoolVarP(&opts.invert, "invert", "i", false, "Invert colors.")
	flags.BoolVarP(&opts.gray, "gray", "g", false, "Remove colors.")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent row bands. 0 uses all CPUs.")
	flags.StringVar(&opts.preset, "preset", "", "Name of a preset from the configuration file to start from.")
	flags.StringVar(&opts.configPath, "config", "", "Path to an HCL configuration file.")

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	persistent.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	cmd.AddCommand(newServeCommand())
	return cmd
}

// filterConfig merges the preset, if any, with the flags given explicitly.
// A configuration file is loaded and validated whenever one is given.
func (opts *rootOptions) filterConfig(flags *pflag.FlagSet) (filters.Config, error) {
	cfg := filters.DefaultConfig()
	file, err := loadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.preset != "" {
		cfg, err = file.Preset(opts.preset)
		if err != nil {
			return cfg, usageError("%v", err)
		}
	}
	if flags.Changed("neighbors") || opts.preset == "" {
		n, err := kernel.Parse(opts.neighbors)
		if err != nil {
			return cfg, usageError("invalid --neighbors value: %v", err)
		}
		cfg.Neighbors = n
	}
	if flags.Changed("add") {
		cfg.Add = opts.add
	}
	if flags.Changed("mult") {
		cfg.Mult = opts.mult
	}
	if flags.Changed("invert") {
		cfg.Invert = opts.invert
	}
	if flags.Changed("gray") {
		cfg.Gray = opts.gray
	}
	return cfg, nil
}

func loadConfig(path string) (*config.File, error) {
	if path == "" {
		return config.Default(), nil
	}
	file, err := config.Load(path)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return file, nil
}

func runEngrave(cmd *cobra.Command, opts *rootOptions, input, output string) error {
	logger := logging.FromContext(cmd.Context())
	cfg, err := opts.filterConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if _, err := imageio.FormatFromFilename(output); err != nil {
		return usageError("cannot write %s: %v", output, err)
	}

	img, err := imageio.Open(input)
	if err != nil {
		return failure("failed to open image: %v", err)
	}
	logger.Debug("Image loaded.", "path", input, "width", img.Width(), "height", img.Height())

	start := time.Now()
	out := filters.ApplyWorkers(img, cfg, opts.workers)
	logger.Info("Image engraved.", "neighbors", cfg.Neighbors.String(), "add", cfg.Add, "mult", cfg.Mult,
		"invert", cfg.Invert, "gray", cfg.Gray, "elapsed", time.Since(start))

	if err := imageio.Save(output, out); err != nil {
		return failure("failed to save image: %v", err)
	}
	logger.Debug("Image saved.", "path", output)
	return nil
}

type serveOptions struct {
	addr        string
	maxUploadMB int
	workers     int
	configPath  string
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engraving filter over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func (opts *serveOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&opts.addr, "addr", config.DefaultAddr, "Address to listen on.")
	flags.IntVar(&opts.maxUploadMB, "max-upload-mb", config.DefaultMaxUploadMB, "Maximum request body size in MiB.")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent row bands per request. 0 uses all CPUs.")
	flags.StringVar(&opts.configPath, "config", "", "Path to an HCL configuration file.")
}

// serverConfig merges the server block of the configuration file with the
// flags given explicitly.
func (opts *serveOptions) serverConfig(flags *pflag.FlagSet) (config.Server, error) {
	file, err := loadConfig(opts.configPath)
	if err != nil {
		return config.Server{}, err
	}
	cfg := file.Server
	if flags.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if flags.Changed("max-upload-mb") {
		if opts.maxUploadMB <= 0 {
			return cfg, usageError("--max-upload-mb must be positive, got %d", opts.maxUploadMB)
		}
		cfg.MaxUploadMB = opts.maxUploadMB
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := opts.serverConfig(cmd.Flags())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logging.FromContext(ctx))
	if err := srv.Run(ctx); err != nil {
		return failure("server error: %v", err)
	}
	return nil
}
