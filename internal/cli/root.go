// Package cli implements the sdscan command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/didzislauva/sdcard-forensics/internal/core"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Logger *slog.Logger
	RunID  string
	Image  *image.Image
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Image != nil {
		c.Image.Close()
		c.Image = nil
	}
}

// openImage opens path with the named backend, falling back to the
// configured default.
func (c *cmdContext) openImage(path, backend string) error {
	if backend == "" {
		backend = c.Config.Defaults.Backend
	}
	b, err := image.ParseBackend(backend)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	img, err := image.Open(path, b)
	if err != nil {
		return err
	}
	c.Image = img
	c.Logger.Debug("image opened", "path", path, "backend", string(b), "size", img.Size())
	return nil
}

var (
	rootConfigPath string
	rootLogLevel   string
	rootLogFormat  string
)

// initContext loads config and builds the logger
func initContext() *cmdContext {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		exitError("%v", err)
	}

	runID := uuid.NewString()
	logger := newLogger(os.Stderr, rootLogLevel, rootLogFormat).With("run_id", runID)
	if cfg.Path() != "" {
		logger.Debug("config loaded", "path", cfg.Path())
	}
	return &cmdContext{Config: cfg, Logger: logger, RunID: runID}
}

// newLogger builds the process logger. Reports go to stdout, so logs
// always go to w (stderr in practice).
func newLogger(w io.Writer, logLevel, logFormat string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "sdscan",
	Short: "Flash image boundary and alias scanner",
	Long: `sdscan inspects raw images of SD cards and other flash media. It finds
where real data ends before the erased padding, and looks for the repeated
content that fake-capacity cards show when writes wrap around.

Images are only ever read. Extraction writes to separate output files.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfigPath, "config", "", "Config file (env: "+config.EnvConfig+")")
	pf.StringVar(&rootLogLevel, "log-level", envOrDefault("SDSCAN_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	pf.StringVar(&rootLogFormat, "log-format", envOrDefault("SDSCAN_LOG_FORMAT", "text"), "Log format (text|json)")

	rootCmd.AddCommand(boundaryCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(fixtureCmd)
}

// envOrDefault returns the value of the environment variable key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(core.ExitFatal)
}

// exitOnError prints err and exits with the status it maps to. Cancelled
// runs are reported as interrupted.
func exitOnError(err error) {
	if err == nil {
		return
	}
	switch {
	case core.IsCancelled(err):
		fmt.Fprintln(os.Stderr, "error: interrupted")
	case errors.Is(err, core.ErrNotFound):
		fmt.Fprintf(os.Stderr, "%v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(core.ExitCode(err))
}
