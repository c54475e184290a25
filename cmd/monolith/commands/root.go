// Package commands implements the command line interface of monolith.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/monolith/internal/cache"
	"github.com/GriffinCanCode/monolith/internal/cookies"
	"github.com/GriffinCanCode/monolith/internal/core"
	"github.com/GriffinCanCode/monolith/internal/infrastructure/config"
	"github.com/GriffinCanCode/monolith/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monolith/internal/logging"
	"github.com/GriffinCanCode/monolith/internal/policy"
	"github.com/GriffinCanCode/monolith/internal/retrieve"
	"github.com/GriffinCanCode/monolith/internal/transport"
)

// stdinTarget makes monolith read the document from standard input
const stdinTarget = "-"

// CLI represents the command line interface for monolith.
type CLI struct {
	rootCmd *cobra.Command
	env     func() *config.Config
	now     func() time.Time
}

// New creates a new CLI instance.
func New() *CLI {
	c := &CLI{
		env: config.LoadOrDefault,
		now: time.Now,
	}

	rootCmd := &cobra.Command{
		Use:           "monolith [flags] <target>",
		Short:         "Save a web page as a single HTML file",
		Long:          "Embeds the CSS, images, fonts, scripts and frames a document depends on into the document itself.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       core.Version,
		RunE:          c.run,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	f := rootCmd.Flags()
	f.BoolP("no-audio", "a", false, "Remove audio sources")
	f.StringP("base-url", "b", "", "Set custom base URL")
	f.BoolP("blacklist-domains", "B", false, "Treat list of specified domains as blacklist")
	f.BoolP("no-css", "c", false, "Remove CSS")
	f.StringP("cookie-file", "C", "", "Specify cookie file")
	f.StringArrayP("domain", "d", nil, "Specify domains to use for white/black-listing")
	f.BoolP("ignore-errors", "e", false, "Ignore network errors")
	f.StringP("encoding", "E", "", "Enforce custom charset")
	f.BoolP("no-frames", "f", false, "Remove frames and iframes")
	f.BoolP("no-fonts", "F", false, "Remove fonts")
	f.BoolP("no-images", "i", false, "Remove images")
	f.BoolP("isolate", "I", false, "Cut off document from the Internet")
	f.BoolP("no-js", "j", false, "Remove JavaScript")
	f.BoolP("insecure", "k", false, "Allow invalid X.509 (TLS) certificates")
	f.BoolP("no-metadata", "M", false, "Exclude timestamp and source information")
	f.BoolP("unwrap-noscript", "n", false, "Replace NOSCRIPT elements with their contents")
	f.StringP("output", "o", stdinTarget, "Write output to <file>, use - for STDOUT")
	f.BoolP("silent", "s", false, "Suppress verbosity")
	f.IntP("timeout", "t", 0, "Adjust network request timeout in seconds, 0 for the maximum")
	f.StringP("user-agent", "u", "", "Set custom User-Agent string")
	f.BoolP("no-video", "v", false, "Remove video sources")
	f.StringP("format", "m", "html", "Output format: html or mhtml")
	f.String("policy", "", "Load toggles from a YAML, TOML or JSON file")
	f.String("metrics", "", "Write retrieval metrics in Prometheus text format to <file>")
	f.BoolP("version", "V", false, "Print version information")

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Print help information"

	c.rootCmd = rootCmd
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetIO replaces standard input and output. Used for testing.
func (c *CLI) SetIO(in io.Reader, out, errOut io.Writer) {
	c.rootCmd.SetIn(in)
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

func (c *CLI) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return core.ErrNoTarget
	}
	target := args[0]

	env := c.env()
	p, err := c.buildPolicy(cmd, env)
	if err != nil {
		return err
	}

	logCfg := env.Logger(p.Silent, cmd.ErrOrStderr())
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger := log.Named("monolith").Zap()

	assets, err := newCache(env, logger)
	if err != nil {
		return err
	}

	metrics := monitoring.NewMetrics()
	sess := retrieve.NewSession(p,
		retrieve.WithLogger(logger),
		retrieve.WithMetrics(metrics),
		retrieve.WithCache(assets),
		retrieve.WithClient(transport.NewClient(transport.Options{
			Timeout:          p.RequestTimeout(),
			Insecure:         p.Insecure,
			UserAgent:        p.UserAgent,
			Retries:          env.Fetch.Retries,
			RateLimit:        env.Fetch.RateLimit,
			BreakerThreshold: env.Fetch.BreakerThreshold,
			Logger:           logger,
		})),
	)
	defer sess.Close()

	ctx := cmd.Context()
	var (
		out   []byte
		title string
	)
	if target == stdinTarget {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read standard input: %w", err)
		}
		out, title, err = core.CreateFromData(ctx, sess, data, "", nil)
		if err != nil {
			return err
		}
	} else {
		out, title, err = core.Create(ctx, sess, target)
		if err != nil {
			return err
		}
	}

	output, _ := cmd.Flags().GetString("output")
	if output != stdinTarget {
		output = FormatOutputPath(output, title, p.Format, c.now())
	}
	if err := writeOutput(cmd.OutOrStdout(), output, out); err != nil {
		return err
	}

	snap := metrics.Snapshot()
	logger.Debug("done",
		zap.Int("urls", len(sess.Visited())),
		zap.Int64("fetched", snap.Fetched),
		zap.Int64("cached", snap.Cached),
		zap.Int64("failed", snap.Failed),
		zap.Int64("bytes", snap.Bytes),
		zap.Int64("frames", snap.Frames),
		zap.Duration("retrieving", snap.Duration))

	if path, _ := cmd.Flags().GetString("metrics"); path != "" {
		if err := writeMetrics(metrics, path); err != nil {
			return err
		}
	}
	return nil
}

// buildPolicy layers the policy: environment defaults, then the policy
// file, then the flags given on the command line.
func (c *CLI) buildPolicy(cmd *cobra.Command, env *config.Config) (policy.Policy, error) {
	p := env.Policy()
	f := cmd.Flags()

	if path, _ := f.GetString("policy"); path != "" {
		pf, err := config.LoadPolicyFile(path)
		if err != nil {
			return p, err
		}
		if err := pf.Apply(&p); err != nil {
			return p, fmt.Errorf("invalid policy file %s: %w", path, err)
		}
	}

	toggles := map[string]*bool{
		"no-audio":          &p.NoAudio,
		"blacklist-domains": &p.BlacklistDomains,
		"no-css":            &p.NoCSS,
		"ignore-errors":     &p.IgnoreErrors,
		"no-frames":         &p.NoFrames,
		"no-fonts":          &p.NoFonts,
		"no-images":         &p.NoImages,
		"isolate":           &p.Isolate,
		"no-js":             &p.NoJS,
		"insecure":          &p.Insecure,
		"no-metadata":       &p.NoMetadata,
		"unwrap-noscript":   &p.UnwrapNoscript,
		"silent":            &p.Silent,
		"no-video":          &p.NoVideo,
	}
	for name, dst := range toggles {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	if f.Changed("base-url") {
		p.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("encoding") {
		p.Encoding, _ = f.GetString("encoding")
	}
	if f.Changed("user-agent") {
		p.UserAgent, _ = f.GetString("user-agent")
	}
	if f.Changed("domain") {
		p.Domains, _ = f.GetStringArray("domain")
	}
	if f.Changed("timeout") {
		secs, _ := f.GetInt("timeout")
		if secs < 0 {
			return p, fmt.Errorf("invalid timeout %d", secs)
		}
		p.Timeout = time.Duration(secs) * time.Second
	}
	if f.Changed("format") {
		name, _ := f.GetString("format")
		format, ok := policy.ParseFormat(name)
		if !ok {
			return p, fmt.Errorf("invalid format %q", name)
		}
		p.Format = format
	}

	if path, _ := f.GetString("cookie-file"); path != "" {
		jar, err := readCookies(path)
		if err != nil {
			return p, err
		}
		p.Cookies = jar
	}
	return p, nil
}

func readCookies(path string) ([]cookies.Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	jar, err := cookies.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", path, err)
	}
	return jar, nil
}

// newCache builds the asset cache. A configured disk path is wiped when the
// run ends, so it must not name an existing file.
func newCache(env *config.Config, logger *zap.Logger) (*cache.Cache, error) {
	opts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithMinDiskSize(env.Cache.MinDiskSize),
	}
	if env.Cache.Disk {
		path := env.Cache.Path
		if path == "" {
			path = cache.TempPath()
		} else if _, err := os.Lstat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", cache.ErrStoreExists, path)
		}
		opts = append(opts, cache.WithDiskStore(path))
	}
	c := cache.New(opts...)
	logger.Debug("asset cache ready", zap.Bool("disk", c.OnDisk()))
	return c, nil
}

func writeMetrics(metrics *monitoring.Metrics, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer file.Close()
	return metrics.WriteText(file)
}
