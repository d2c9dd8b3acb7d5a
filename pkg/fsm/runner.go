package fsm

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/db"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/google/uuid"
	"github.com/superfly/fsm"
)

// Runner starts one conversion run per image and waits for it.
type Runner struct {
	manager *fsm.Manager
	start   fsm.Start[ConversionRequest, ConversionResponse]
	machine *Machine
	repo    *db.Repository
	dbPath  string
	tempDir string
}

// NewRunner creates the FSM manager and registers the conversion run. An
// empty dbPath puts the FSM store in a temporary directory that Close removes.
// The store is marked with the process id so cleanup leaves it alone.
func NewRunner(ctx context.Context, repo *db.Repository, pipeline Pipeline, dbPath string) (*Runner, error) {
	r := &Runner{repo: repo}

	if dbPath == "" {
		dir, err := os.MkdirTemp("", "excaliboard-fsm-*")
		if err != nil {
			return nil, errors.Wrap(err, "failed to create FSM directory")
		}
		dbPath, r.tempDir = dir, dir
	} else if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create FSM directory")
	}
	r.dbPath = dbPath
	if err := writeOwner(dbPath); err != nil {
		slog.Warn("fsm_owner_write_failed", "path", dbPath, "error", err)
	}

	manager, err := fsm.New(fsm.Config{DBPath: dbPath})
	if err != nil {
		r.removeTemp()
		return nil, errors.Wrap(err, "FSM manager failed")
	}

	machine := NewMachine(repo, pipeline)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		manager.Shutdown(10 * time.Second)
		r.removeTemp()
		return nil, err
	}

	r.manager, r.start, r.machine = manager, start, machine
	slog.Info("fsm_runner_ready", "db_path", dbPath, "action", Action)
	return r, nil
}

// Convert runs the conversion for blob. Failures carry their error kind.
func (r *Runner) Convert(ctx context.Context, blob *media.ImageBlob) (*convert.Result, error) {
	if blob == nil {
		return nil, errors.New(errors.ErrInvalidState, "no image to convert")
	}

	runID := uuid.NewString()
	if err := r.repo.Create(&db.Conversion{
		RunID:      runID,
		SourceName: blob.Filename(),
		MediaType:  blob.MediaType(),
		Size:       int64(blob.Size()),
		Status:     db.StatusPending,
	}); err != nil {
		return nil, errors.Mark(errors.ErrConversionFailed, err)
	}

	run := r.machine.track(runID)
	defer r.machine.forget(runID)

	req := &ConversionRequest{
		RunID:     runID,
		Filename:  blob.Filename(),
		MediaType: blob.MediaType(),
		Data:      blob.Bytes(),
	}
	resp := &ConversionResponse{}

	version, err := r.start(ctx, runID, fsm.NewRequest(req, resp))
	if err != nil {
		werr := errors.Mark(errors.ErrConversionFailed, errors.Wrap(err, "FSM start failed"))
		r.repo.UpdateStatus(runID, db.StatusFailed, string(errors.KindOf(werr)), werr.Error())
		return nil, werr
	}

	slog.Info("fsm_started", "run_id", runID, "version", version)

	waitErr := r.manager.Wait(ctx, version)

	run.mu.Lock()
	result, runErr := run.result, run.err
	run.mu.Unlock()

	if runErr != nil {
		return nil, runErr
	}
	if waitErr != nil {
		werr := errors.Mark(errors.ErrConversionFailed, errors.Wrap(waitErr, "FSM execution failed"))
		r.repo.UpdateStatus(runID, db.StatusFailed, string(errors.KindOf(werr)), werr.Error())
		return nil, werr
	}
	if result == nil {
		return nil, errors.New(errors.ErrConversionFailed, "run finished without a result")
	}

	slog.Info("fsm_run_completed", "run_id", runID, "filename", result.DownloadName())
	return result, nil
}

// History lists the conversions of this process, newest first.
func (r *Runner) History() ([]*db.Conversion, error) {
	return r.repo.List()
}

// Close stops the FSM manager and removes its temporary store.
func (r *Runner) Close() {
	r.manager.Shutdown(10 * time.Second)
	r.removeTemp()
}

func (r *Runner) removeTemp() {
	if r.tempDir == "" {
		if err := removeOwner(r.dbPath); err != nil {
			slog.Warn("fsm_owner_remove_failed", "path", r.dbPath, "error", err)
		}
		return
	}
	if err := os.RemoveAll(r.tempDir); err != nil {
		slog.Warn("fsm_temp_cleanup_failed", "path", r.tempDir, "error", err)
	}
}
