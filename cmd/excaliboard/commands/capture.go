package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a whiteboard photo with the camera and convert it",
	Long: `Opens the rear camera and shows a preview. Press Enter to take the photo,
or type q and Enter to cancel.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cam := a.newCamera()
	defer cam.Cancel()

	if err := cam.StartCapture(ctx); err != nil {
		return reported{err}
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Println("📷 Press Enter to take the photo, q to cancel")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok || strings.EqualFold(strings.TrimSpace(line), "q") {
				cam.Cancel()
				fmt.Println("Capture cancelled")
				return nil
			}
		}

		if err := cam.Capture(); err != nil {
			if errors.Is(err, errors.ErrCaptureFailed) {
				continue
			}
			return reported{err}
		}
		break
	}

	if err := a.convertAndSave(ctx); err != nil {
		return reported{err}
	}
	return nil
}
