package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/excaliboard/excaliboard/internal/config"
	"github.com/excaliboard/excaliboard/internal/httpc"
	"github.com/excaliboard/excaliboard/pkg/artifact"
	"github.com/excaliboard/excaliboard/pkg/camera"
	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/db"
	"github.com/excaliboard/excaliboard/pkg/errors"
	appfsm "github.com/excaliboard/excaliboard/pkg/fsm"
	"github.com/excaliboard/excaliboard/pkg/input"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/notify"
	"github.com/excaliboard/excaliboard/pkg/security"
	"github.com/excaliboard/excaliboard/pkg/session"
	"github.com/excaliboard/excaliboard/pkg/storage"
)

// app wires one conversion session with everything around it.
type app struct {
	cfg       *config.Config
	notifier  notify.Notifier
	validator *security.Validator
	repo      *db.Repository
	runner    *appfsm.Runner
	session   *session.Session
	source    *input.Source
	sink      artifact.Sink
	s3        *storage.Client
}

// newApp loads and validates configuration and builds the pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}

	encoding, err := convert.ParseEncoding(cfg.RequestEncoding)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		notifier:  notify.NewConsole(os.Stdout),
		validator: security.NewValidator(cfg.MaxImageSize),
	}

	a.repo, err = db.NewRepository(cfg.HistoryDB)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}

	client := convert.NewClient(cfg.Endpoint, encoding, httpc.NewClient(cfg.RequestTimeout), a.validator)
	a.runner, err = appfsm.NewRunner(ctx, a.repo, client, cfg.FSMDBPath)
	if err != nil {
		a.repo.Close()
		return nil, errors.Wrap(err, "FSM init failed")
	}

	a.session = session.New(a.runner, a.notifier, session.Options{Pretty: cfg.Pretty})
	a.source = input.NewSource(a.validator, a.session, a.notifier)

	if cfg.S3Bucket != "" {
		s3Client, err := a.storage(ctx)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "S3 client failed")
		}
		a.sink = storage.Sink{Client: s3Client, Prefix: cfg.S3Prefix, Overwrite: cfg.S3Overwrite}
	} else {
		a.sink = artifact.DirSink{Dir: cfg.OutputDir}
	}

	slog.Info("app_ready",
		"endpoint", client.Endpoint(),
		"encoding", encoding,
		"history_db", cfg.HistoryDB,
		"s3_bucket", cfg.S3Bucket)
	return a, nil
}

// storage returns the S3 client, creating it on first use.
func (a *app) storage(ctx context.Context) (*storage.Client, error) {
	if a.s3 != nil {
		return a.s3, nil
	}
	c, err := storage.NewClient(ctx, a.cfg.S3Bucket, a.cfg.S3Region, a.cfg.S3Anonymous)
	if err != nil {
		return nil, err
	}
	a.s3 = c
	return c, nil
}

// loadBlob reads a local path or an s3:// object.
func (a *app) loadBlob(ctx context.Context, arg string) (*media.ImageBlob, error) {
	if storage.IsURI(arg) {
		c, err := a.storage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "S3 client failed")
		}
		return c.FetchBlob(ctx, arg)
	}
	return media.ReadFile(arg)
}

// loadBlobs reads every argument. A source that cannot be read is reported
// and skipped.
func (a *app) loadBlobs(ctx context.Context, args []string) []*media.ImageBlob {
	blobs := make([]*media.ImageBlob, 0, len(args))
	for _, arg := range args {
		blob, err := a.loadBlob(ctx, arg)
		if err != nil {
			slog.Error("image_load_failed", "source", arg, "error", err)
			a.notifier.Error(err)
			continue
		}
		blobs = append(blobs, blob)
	}
	return blobs
}

// newCamera builds a controller whose stills go to the input source.
func (a *app) newCamera() *camera.Controller {
	var device camera.Device
	var preview camera.Preview
	if a.cfg.CameraSource != "" {
		device = &camera.StillDevice{Path: a.cfg.CameraSource}
		preview = &camera.LogPreview{}
	} else {
		device = camera.NewSystemDevice(a.cfg.CameraDevice)
		preview = camera.NewWindowPreview("excaliboard")
	}
	return camera.NewController(device, preview, a.notifier, a.source.Captured)
}

// convertAndSave converts the selected image and saves the diagram.
func (a *app) convertAndSave(ctx context.Context) error {
	if err := a.session.Convert(ctx); err != nil {
		return err
	}
	_, err := a.session.Download(ctx, a.sink)
	return err
}

// Close releases the FSM store and the history database.
func (a *app) Close() {
	if a.runner != nil {
		a.runner.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

var errNoImage = errors.New(errors.ErrInvalidMediaType, "no readable image")
