package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/excaliboard/excaliboard/pkg/db"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/superfly/fsm"
)

type transition = fsm.Request[ConversionRequest, ConversionResponse]

// begin runs the checks every state shares: the run must be tracked, and a
// run that is being retried aborts because the submission is not repeatable.
func (m *Machine) begin(ctx context.Context, req *transition, state, status string) (*run, *ConversionResponse, error) {
	runID := req.Msg.RunID
	slog.Info("fsm_state_"+state, "run_id", runID)

	r := m.lookup(runID)
	if r == nil {
		slog.Error("fsm_run_unknown", "run_id", runID, "state", state)
		return nil, nil, fsm.Abort(fmt.Errorf("run %s is not tracked by this process", runID))
	}

	if retryCount := fsm.RetryFromContext(ctx); retryCount > 0 {
		slog.Error("fsm_retry_refused", "run_id", runID, "state", state, "retry", retryCount)
		return nil, nil, m.fail(r, req, errors.New(errors.ErrConversionFailed, fmt.Sprintf("%s interrupted, not retried", state)))
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &ConversionResponse{}
	}

	if status != "" {
		if err := m.repo.UpdateStatus(runID, status, "", ""); err != nil {
			slog.Error("status_update_failed", "run_id", runID, "status", status, "error", err)
			return nil, nil, m.fail(r, req, errors.Mark(errors.ErrConversionFailed, err))
		}
	}
	resp.Status = status
	return r, resp, nil
}

// fail records err against the run and the history row, then aborts the FSM
// into the failed state.
func (m *Machine) fail(r *run, req *transition, err error) error {
	kind := errors.KindOf(err)

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()

	if resp := req.W.Msg; resp != nil {
		resp.Status = db.StatusFailed
		resp.ErrorKind = string(kind)
		resp.ErrorMessage = err.Error()
	}
	if uerr := m.repo.UpdateStatus(req.Msg.RunID, db.StatusFailed, string(kind), err.Error()); uerr != nil {
		slog.Error("status_update_failed", "run_id", req.Msg.RunID, "status", db.StatusFailed, "error", uerr)
	}

	slog.Error("fsm_run_failed", "run_id", req.Msg.RunID, "kind", kind, "error", err)
	return fsm.Abort(err)
}

// handleEncode builds the request body
func (m *Machine) handleEncode(ctx context.Context, req *transition) (*fsm.Response[ConversionResponse], error) {
	r, resp, err := m.begin(ctx, req, StateEncode, db.StatusEncoding)
	if err != nil {
		return nil, err
	}

	blob := media.NewImageBlob(req.Msg.Data, req.Msg.MediaType, req.Msg.Filename)
	body, contentType, err := m.pipeline.Encode(blob)
	if err != nil {
		return nil, m.fail(r, req, err)
	}

	r.mu.Lock()
	r.body, r.contentType = body, contentType
	r.mu.Unlock()

	resp.ContentType = contentType
	resp.BodySize = len(body)
	return fsm.NewResponse(resp), nil
}

// handleSubmit posts the body to the conversion service exactly once
func (m *Machine) handleSubmit(ctx context.Context, req *transition) (*fsm.Response[ConversionResponse], error) {
	r, resp, err := m.begin(ctx, req, StateSubmit, db.StatusSubmitting)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	body, contentType := r.body, r.contentType
	r.mu.Unlock()

	raw, err := m.pipeline.Submit(ctx, body, contentType)
	if err != nil {
		return nil, m.fail(r, req, err)
	}

	r.mu.Lock()
	r.body = nil
	r.raw = raw
	r.mu.Unlock()

	resp.ResponseSize = len(raw)
	return fsm.NewResponse(resp), nil
}

// handleNormalize unwraps the response envelope
func (m *Machine) handleNormalize(ctx context.Context, req *transition) (*fsm.Response[ConversionResponse], error) {
	r, resp, err := m.begin(ctx, req, StateNormalize, db.StatusNormalizing)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	raw := r.raw
	r.mu.Unlock()

	res, err := m.pipeline.Normalize(raw)
	if err != nil {
		return nil, m.fail(r, req, err)
	}

	r.mu.Lock()
	r.raw = nil
	r.result = res
	r.mu.Unlock()

	resp.Filename = res.DownloadName()
	return fsm.NewResponse(resp), nil
}

// handleComplete marks the run ready
func (m *Machine) handleComplete(ctx context.Context, req *transition) (*fsm.Response[ConversionResponse], error) {
	r, resp, err := m.begin(ctx, req, StateComplete, "")
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	res := r.result
	r.mu.Unlock()
	if res == nil {
		return nil, m.fail(r, req, errors.New(errors.ErrInvalidState, "complete reached without a result"))
	}

	if err := m.repo.SetResult(req.Msg.RunID, res.DownloadName()); err != nil {
		slog.Error("status_update_failed", "run_id", req.Msg.RunID, "status", db.StatusReady, "error", err)
		return nil, m.fail(r, req, errors.Mark(errors.ErrConversionFailed, err))
	}
	resp.Status = db.StatusReady
	resp.Filename = res.DownloadName()

	slog.Info("fsm_complete", "run_id", req.Msg.RunID, "filename", resp.Filename)
	return fsm.NewResponse(resp), nil
}
