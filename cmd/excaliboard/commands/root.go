package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/excaliboard/excaliboard/internal/config"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "excaliboard",
	Short: "Turn whiteboard photos into Excalidraw diagrams",
	Long: `Sends a whiteboard photo (file, s3:// object or camera still) to a conversion
service and saves the returned .excalidraw document.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// reported wraps a failure the console notifier has already shown.
type reported struct {
	error
}

func (r reported) Unwrap() error { return r.error }

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var r reported
		if !errors.As(err, &r) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("endpoint", config.DefaultEndpoint, "Conversion service URL")
	flags.String("request-encoding", "json", "Request body encoding (json or multipart)")
	flags.Duration("request-timeout", 0, "Conversion request timeout (0 = none)")
	flags.Int64("max-image-size", 25*1024*1024, "Max image size in bytes (0 = unlimited)")
	flags.String("output-dir", ".", "Directory downloaded diagrams are written to")
	flags.Bool("pretty", false, "Indent downloaded diagrams")
	flags.String("history-db", ":memory:", "SQLite path for conversion history")
	flags.String("fsm-db-path", "", "FSM BoltDB directory (default: temporary)")
	flags.Int("camera-device", 0, "Camera device index")
	flags.String("camera-source", "", "Image file served as the camera stream")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("s3-bucket", "", "Upload diagrams to this S3 bucket instead of output-dir")
	flags.String("s3-prefix", "", "Key prefix for uploaded diagrams")
	flags.Bool("s3-anonymous", false, "Use unsigned S3 requests")
	flags.Bool("s3-overwrite", false, "Replace existing S3 objects instead of picking a free key")
	flags.Bool("auto-convert", true, "Convert as soon as an image is selected")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text or json)")

	for _, name := range []string{
		"endpoint", "request-encoding", "request-timeout", "max-image-size",
		"output-dir", "pretty", "history-db", "fsm-db-path",
		"camera-device", "camera-source",
		"s3-region", "s3-bucket", "s3-prefix", "s3-anonymous", "s3-overwrite",
		"auto-convert", "log-level", "log-format",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// setupLogging installs the configured slog handler.
func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
