package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <image> [image...]",
	Short: "Convert a whiteboard photo and save the diagram",
	Long: `Converts one image and saves the resulting .excalidraw file.

An image is a local path or an s3://bucket/key location. Several images are
treated like a drop: only the first readable one is converted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	blobs := a.loadBlobs(ctx, args)
	if len(blobs) == 0 {
		return reported{errNoImage}
	}

	if len(args) == 1 {
		err = a.source.FileChosen(blobs[0])
	} else {
		err = a.source.FilesDropped(blobs)
	}
	if err != nil {
		return reported{err}
	}

	if err := a.convertAndSave(ctx); err != nil {
		return reported{err}
	}
	return nil
}
