package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/notify"
)

// State of the capture controller.
type State string

const (
	StateClosed     State = "closed"
	StateRequesting State = "requesting"
	StatePreviewing State = "previewing"
)

// Event drives a controller transition.
type Event string

const (
	EventStartRequested Event = "start_requested"
	EventStreamGranted  Event = "stream_granted"
	EventStreamDenied   Event = "stream_denied"
	EventFrameCaptured  Event = "frame_captured"
	EventCancelled      Event = "cancelled"
)

var transitions = map[State]map[Event]State{
	StateClosed: {
		EventStartRequested: StateRequesting,
	},
	StateRequesting: {
		EventStreamGranted: StatePreviewing,
		EventStreamDenied:  StateClosed,
		EventCancelled:     StateClosed,
	},
	StatePreviewing: {
		EventFrameCaptured: StateClosed,
		EventCancelled:     StateClosed,
	},
}

// reduce returns the state ev leads to from s.
func reduce(s State, ev Event) (State, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, errors.New(errors.ErrInvalidState, fmt.Sprintf("camera cannot handle %s while %s", ev, s))
	}
	return next, nil
}

// cameraSession is one acquisition, from request to release.
type cameraSession struct {
	facing   Facing
	cancel   context.CancelFunc
	stream   Stream
	width    int
	height   int
	attached bool
}

// release stops every track and detaches the preview. The stream reference is
// dropped on the first call, so tracks are stopped at most once. Callers hold
// the controller lock.
func (cs *cameraSession) release(preview Preview) {
	cs.cancel()
	if cs.attached && preview != nil {
		preview.Detach()
	}
	cs.attached = false

	stream := cs.stream
	cs.stream = nil
	if stream == nil {
		return
	}
	for _, t := range stream.Tracks() {
		t.Stop()
	}
	slog.Info("camera_released", "tracks", len(stream.Tracks()))
}

// Controller runs the capture state machine over a Device.
type Controller struct {
	device    Device
	preview   Preview
	notifier  notify.Notifier
	onCapture func(*media.ImageBlob) error
	quality   int

	mu    sync.Mutex
	state State
	cur   *cameraSession
}

// NewController creates a closed controller. onCapture receives every
// successful still.
func NewController(device Device, preview Preview, notifier notify.Notifier, onCapture func(*media.ImageBlob) error) *Controller {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Controller{
		device:    device,
		preview:   preview,
		notifier:  notifier,
		onCapture: onCapture,
		quality:   DefaultJPEGQuality,
		state:     StateClosed,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dispatch applies ev. Callers hold c.mu.
func (c *Controller) dispatch(ev Event) error {
	next, err := reduce(c.state, ev)
	if err != nil {
		slog.Warn("camera_event_rejected", "state", c.state, "event", ev)
		return err
	}
	slog.Info("camera_transition", "from", c.state, "to", next, "event", ev)
	c.state = next
	return nil
}

// StartCapture requests a rear-facing video stream and attaches it to the
// preview. It is a no-op while a request or preview is already active.
func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.cur != nil {
		slog.Info("camera_start_ignored", "state", c.state)
		c.mu.Unlock()
		return nil
	}
	if err := c.dispatch(EventStartRequested); err != nil {
		c.mu.Unlock()
		return err
	}
	acqCtx, cancel := context.WithCancel(ctx)
	cs := &cameraSession{facing: FacingEnvironment, cancel: cancel}
	c.cur = cs
	c.mu.Unlock()

	stream, err := c.device.Open(acqCtx, Constraints{Video: true, Facing: cs.facing})
	var width, height int
	if err == nil {
		width, height, err = stream.Ready(acqCtx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != cs {
		// Cancelled while the request was pending.
		cs.stream = stream
		cs.release(c.preview)
		return nil
	}

	if err != nil {
		cs.stream = stream
		cs.release(c.preview)
		c.cur = nil
		c.dispatch(EventStreamDenied)

		if ctx.Err() != nil {
			slog.Info("camera_request_abandoned", "error", ctx.Err())
			return ctx.Err()
		}
		slog.Error("camera_acquisition_failed",
			"permission_denied", errors.Is(err, ErrPermissionDenied),
			"no_device", errors.Is(err, ErrNoDevice),
			"error", err)
		werr := errors.Mark(errors.ErrCameraUnavailable, err)
		c.notifier.Error(werr)
		return werr
	}

	cs.stream = stream
	cs.width, cs.height = width, height

	// Enter Previewing before attaching so the render target exists by the
	// time frames flow.
	c.dispatch(EventStreamGranted)

	if c.preview != nil {
		if err := c.preview.Attach(stream); err != nil {
			cs.release(c.preview)
			c.cur = nil
			c.dispatch(EventCancelled)
			werr := errors.Mark(errors.ErrCameraUnavailable, errors.Wrap(err, "attach preview"))
			c.notifier.Error(werr)
			return werr
		}
		cs.attached = true
	}

	slog.Info("camera_previewing", "facing", cs.facing, "width", width, "height", height)
	return nil
}

// Capture takes the current frame as a JPEG still, releases the stream and
// hands the still on. A frame that rasterizes to nothing leaves the preview
// open so the user can try again.
func (c *Controller) Capture() error {
	c.mu.Lock()
	if c.state != StatePreviewing || c.cur == nil {
		state := c.state
		c.mu.Unlock()
		return errors.New(errors.ErrInvalidState, fmt.Sprintf("cannot capture while %s", state))
	}
	cs := c.cur

	data, err := c.still(cs)
	if err != nil {
		c.mu.Unlock()
		slog.Warn("camera_capture_failed", "error", err)
		werr := errors.Mark(errors.ErrCaptureFailed, err)
		c.notifier.Error(werr)
		return werr
	}

	c.dispatch(EventFrameCaptured)
	c.cur = nil
	cs.release(c.preview)
	c.mu.Unlock()

	blob := media.NewImageBlob(data, "image/jpeg", media.CaptureFilename)
	slog.Info("camera_captured", "size", blob.Size(), "width", cs.width, "height", cs.height)

	if c.onCapture == nil {
		return nil
	}
	return c.onCapture(blob)
}

func (c *Controller) still(cs *cameraSession) ([]byte, error) {
	frame, err := cs.stream.Frame()
	if err != nil {
		return nil, err
	}
	return Rasterize(frame, cs.width, cs.height, c.quality)
}

// Cancel abandons a pending request or closes the preview. It does nothing
// when the camera is already closed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.cur
	if cs == nil {
		return
	}
	c.cur = nil
	c.dispatch(EventCancelled)
	cs.release(c.preview)
}
