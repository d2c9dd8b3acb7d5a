package commands

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/excaliboard/excaliboard/internal/config"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/storage"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list s3://<bucket>[/prefix]",
	Short: "List the images in an S3 location that convert can read",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if !storage.IsURI(args[0]) {
		return fmt.Errorf("expected s3://bucket/prefix, got %q", args[0])
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(args[0], storage.Scheme), "/")
	if bucket == "" {
		return fmt.Errorf("missing bucket in %q", args[0])
	}

	client, err := storage.NewClient(ctx, bucket, cfg.S3Region, cfg.S3Anonymous)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	keys, err := client.ListObjects(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	var images []string
	for _, key := range keys {
		if strings.HasPrefix(media.DetectMediaType(path.Base(key), "", nil), "image/") {
			images = append(images, key)
		}
	}

	if len(images) == 0 {
		fmt.Println("No images found")
		return nil
	}

	fmt.Printf("%-60s %-20s\n", "LOCATION", "MEDIA TYPE")
	fmt.Println(strings.Repeat("-", 80))
	for _, key := range images {
		fmt.Printf("%-60s %-20s\n",
			storage.Scheme+bucket+"/"+key, media.DetectMediaType(path.Base(key), "", nil))
	}

	return nil
}
