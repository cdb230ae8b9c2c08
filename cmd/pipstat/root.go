package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ippclub/pipstat/internal/chart"
	"github.com/ippclub/pipstat/internal/config"
	"github.com/ippclub/pipstat/internal/index"
	"github.com/ippclub/pipstat/internal/logger"
	"github.com/ippclub/pipstat/internal/model"
	"github.com/ippclub/pipstat/internal/report"
	"github.com/ippclub/pipstat/internal/stats"
	"github.com/ippclub/pipstat/internal/terminal"
)

// errReported marks failures whose message has already been printed.
var errReported = errors.New("reported")

// Local variables for flag binding
type options struct {
	configPath string
	indexURL   string
	protocol   string
	width      int
	output     string
	logLevel   string
	noColor    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pipstat [flags] <package>...",
		Short: "Show download statistics for packages on a package index",
		Long: `pipstat shows download statistics for packages on a package index.

A package is given as a bare name, as name/version, or as a full index URL
such as https://pypi.org/pypi/name. Each package gets a bar chart of
downloads per version, ordered by release date, and a summary.

Examples:
  # Statistics for one package
  pipstat requests

  # Several packages, one of them with a version highlighted
  pipstat flask webargs/0.5.1

  # A package on another index, using the XML-RPC API
  pipstat --protocol xmlrpc https://mirror.local/pypi/internal-lib`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(stderr, "No package names specified.")
				fmt.Fprint(stderr, cmd.UsageString())
				return errReported
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.Flags(), args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&opts.indexURL, "index", "", "Index URL used for bare package names (default https://pypi.org/pypi)")
	flags.StringVar(&opts.protocol, "protocol", "", "Index protocol: json or xmlrpc")
	flags.IntVarP(&opts.width, "width", "w", 0, "Display width, 0 probes the terminal")
	flags.StringVarP(&opts.output, "output", "o", "", "Output format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// apply overrides the loaded configuration with flags given on the command line.
func (o *options) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("index") {
		cfg.Index.URL = o.indexURL
	}
	if flags.Changed("protocol") {
		cfg.Index.Protocol = o.protocol
	}
	if flags.Changed("width") {
		cfg.Display.Width = o.width
	}
	if flags.Changed("output") {
		cfg.Display.Output = o.output
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if o.noColor {
		cfg.Display.Color = "never"
	}
}

func (o *options) run(ctx context.Context, flags *pflag.FlagSet, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadFromFile(o.configPath)
	if err != nil {
		return err
	}
	o.apply(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.InitLogger(cfg, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Debug("starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("build_date", BuildDate),
		zap.String("protocol", cfg.Index.Protocol),
	)

	factory, err := index.NewFactory(cfg.Index.Protocol, indexOptions(cfg), log)
	if err != nil {
		return err
	}
	registry := index.NewRegistry(factory)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warn("failed to close index clients", zap.Error(err))
		}
	}()

	out := report.New(stdout, report.Options{
		Width:      displayWidth(cfg, stdout),
		DateFormat: cfg.Display.DateFormat,
		Renderer: chart.Renderer{
			Tick:          cfg.Display.Tick,
			Margin:        cfg.Display.Margin,
			MaxLabelWidth: cfg.Display.MaxLabelWidth,
		},
		Color: colorEnabled(cfg.Display.Color, stdout),
	})

	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)
	if !colorEnabled(cfg.Display.Color, stderr) {
		warn.DisableColor()
		fail.DisableColor()
	} else {
		warn.EnableColor()
		fail.EnableColor()
	}

	// Progress lines would corrupt a JSON document on stdout.
	progress := stdout
	if cfg.Display.Output == "json" {
		progress = stderr
	}

	for _, arg := range args {
		id, err := index.ParseIdentifier(arg, cfg.Index.URL)
		if err != nil {
			var invalid *index.InvalidIdentifierError
			if errors.As(err, &invalid) {
				warn.Fprintf(stderr, "Invalid name or URL: '%s'\n", invalid.Input)
				continue
			}
			return err
		}

		fmt.Fprintf(progress, "Fetching statistics for '%s'. . .\n", id.IndexURL)

		s, err := fetch(ctx, registry, id)
		if errors.Is(err, model.ErrPackageNotFound) {
			fail.Fprintf(stderr, "No versions of '%s' were found.\n", id.Name)
			return errReported
		}
		if err != nil {
			return err
		}
		log.Debug("aggregated statistics",
			zap.String("package", s.Name()),
			zap.Int("versions", s.Versions().Len()),
			zap.Int64("downloads", s.Downloads()),
		)

		if cfg.Display.Output == "json" {
			err = out.JSON(s, id.Version)
		} else {
			err = out.Text(s, id.Version)
		}
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func fetch(ctx context.Context, registry *index.Registry, id index.Identifier) (*stats.Stats, error) {
	client, err := registry.Get(id.IndexURL)
	if err != nil {
		return nil, err
	}
	manifest, err := client.FetchManifest(ctx, id.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from %s: %w", id.Name, id.IndexURL, err)
	}
	if manifest.Name == "" {
		manifest.Name = id.Name
	}
	return stats.Aggregate(manifest)
}

func indexOptions(cfg *config.Config) index.Options {
	opts := index.DefaultOptions()
	opts.Timeout = cfg.Index.Timeout
	opts.RPS = cfg.RateLimit.RPS
	opts.Burst = cfg.RateLimit.Burst
	opts.Retry = cfg.Retry
	opts.UserAgent = fmt.Sprintf("%s/%s", cfg.Index.UserAgent, Version)
	return opts
}

// displayWidth prefers the configured width, then the width of the
// terminal behind w.
func displayWidth(cfg *config.Config, w io.Writer) int {
	if cfg.Display.Width > 0 {
		return cfg.Display.Width
	}
	f, _ := w.(*os.File)
	return terminal.Width(f)
}

func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && terminal.IsTerminal(f)
}
