package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/excaliboard/excaliboard/pkg/camera"
	"github.com/excaliboard/excaliboard/pkg/session"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session: pick, capture, convert and download",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `Commands:
  open <image>         choose an image (path or s3://bucket/key)
  drop <image>...      drop images; the first one is used
  camera               start the camera preview
  snap                 take the photo
  cancel               close the camera
  convert              convert the selected image
  download             save the converted diagram
  status               show session and camera state
  history              list conversions of this session
  help                 show this help
  quit                 leave the shell`

func runShell(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sh := &shell{app: a, out: os.Stdout}
	defer sh.close()
	return sh.run(ctx, os.Stdin)
}

type shell struct {
	app *app
	out io.Writer
	cam *camera.Controller
	wg  sync.WaitGroup
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(sh.out, "excaliboard shell, type help for commands")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if quit := sh.dispatch(ctx, fields[0], fields[1:]); quit {
			return nil
		}
	}
}

// dispatch runs one command. Failures have already been shown to the user by
// the component that detected them.
func (sh *shell) dispatch(ctx context.Context, name string, args []string) bool {
	a := sh.app
	slog.Debug("shell_command", "command", name, "args", args)

	switch strings.ToLower(name) {
	case "open":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "usage: open <image>")
			return false
		}
		blob, err := a.loadBlob(ctx, args[0])
		if err != nil {
			a.notifier.Error(err)
			return false
		}
		if err := a.source.FileChosen(blob); err == nil {
			sh.selected(ctx)
		}

	case "drop":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, "usage: drop <image>...")
			return false
		}
		a.source.DragOver()
		blobs := a.loadBlobs(ctx, args)
		if len(blobs) == 0 {
			a.source.DragLeave()
			return false
		}
		if err := a.source.FilesDropped(blobs); err == nil {
			sh.selected(ctx)
		}

	case "camera":
		if sh.cam == nil {
			sh.cam = a.newCamera()
		}
		sh.cam.StartCapture(ctx)

	case "snap":
		if sh.cam == nil {
			fmt.Fprintln(sh.out, "camera is not open")
			return false
		}
		// A capture closes the camera, and the photo would be refused as busy.
		if sh.converting() {
			fmt.Fprintln(sh.out, "still converting the previous image, the camera stays open; snap again when it finishes")
			return false
		}
		if err := sh.cam.Capture(); err == nil {
			sh.selected(ctx)
		}

	case "cancel":
		if sh.cam != nil {
			sh.cam.Cancel()
		}

	case "convert":
		sh.convert(ctx)

	case "download":
		a.session.Download(ctx, a.sink)

	case "status":
		sh.status()

	case "history":
		sh.history()

	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)

	case "quit", "exit":
		return true

	default:
		fmt.Fprintf(sh.out, "unknown command %q, type help\n", name)
	}
	return false
}

func (sh *shell) converting() bool {
	return sh.app.session.State().Phase == session.PhaseConverting
}

// selected starts a conversion when auto-convert is on.
func (sh *shell) selected(ctx context.Context) {
	if sh.app.cfg.AutoConvert {
		sh.convert(ctx)
	}
}

// convert runs the conversion in the background so the shell stays
// responsive. A selection made meanwhile is rejected as busy.
func (sh *shell) convert(ctx context.Context) {
	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()
		sh.app.session.Convert(ctx)
	}()
}

func (sh *shell) status() {
	st := sh.app.session.State()
	fmt.Fprintf(sh.out, "session: %s\n", st)
	if st.Blob != nil {
		fmt.Fprintf(sh.out, "image:   %s (%s, %s)\n",
			st.Blob.Filename(), st.Blob.MediaType(), humanize.Bytes(uint64(st.Blob.Size())))
	}
	if st.Result != nil {
		fmt.Fprintf(sh.out, "result:  %s\n", st.Result.DownloadName())
	}
	camState := camera.StateClosed
	if sh.cam != nil {
		camState = sh.cam.State()
	}
	fmt.Fprintf(sh.out, "camera:  %s\n", camState)
}

func (sh *shell) history() {
	conversions, err := sh.app.runner.History()
	if err != nil {
		sh.app.notifier.Error(err)
		return
	}
	if len(conversions) == 0 {
		fmt.Fprintln(sh.out, "No conversions yet")
		return
	}

	fmt.Fprintf(sh.out, "%-24s %-12s %-10s %-28s %s\n", "SOURCE", "STATUS", "SIZE", "RESULT", "ERROR")
	fmt.Fprintln(sh.out, strings.Repeat("-", 96))
	for _, c := range conversions {
		result := c.ResultFilename
		if result == "" {
			result = "-"
		}
		errText := c.ErrorKind
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(sh.out, "%-24s %-12s %-10s %-28s %s\n",
			c.SourceName, c.Status, humanize.Bytes(uint64(c.Size)), result, errText)
	}
}

// close releases the camera and waits for a running conversion.
func (sh *shell) close() {
	if sh.cam != nil {
		sh.cam.Cancel()
	}
	sh.wg.Wait()
}
