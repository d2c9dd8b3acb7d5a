package camera

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
)

type countingTrack struct {
	mu    sync.Mutex
	stops int
}

func (t *countingTrack) Kind() string { return "video" }

func (t *countingTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *countingTrack) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeStream struct {
	tracks []*countingTrack
	frame  image.Image
	width  int
	height int
}

func newFakeStream(w, h int) *fakeStream {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	return &fakeStream{
		tracks: []*countingTrack{{}, {}},
		frame:  img,
		width:  w,
		height: h,
	}
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Ready(ctx context.Context) (int, int, error) {
	return s.width, s.height, nil
}

func (s *fakeStream) Frame() (image.Image, error) {
	return s.frame, nil
}

type fakeDevice struct {
	mu     sync.Mutex
	opens  int
	stream *fakeStream
	err    error
	gate   chan struct{}
	called chan struct{}
	last   Constraints
}

func (d *fakeDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	d.opens++
	d.last = c
	gate, called := d.gate, d.called
	d.mu.Unlock()

	if called != nil {
		close(called)
	}
	if gate != nil {
		<-gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// statePreview records the controller state seen at attach time.
type statePreview struct {
	ctrl      *Controller
	seen      State
	attaches  int
	detaches  int
	attachErr error
}

func (p *statePreview) Attach(s Stream) error {
	p.attaches++
	// Called with the controller lock held; read the field directly.
	p.seen = p.ctrl.state
	return p.attachErr
}

func (p *statePreview) Detach() { p.detaches++ }

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Success(string) {}

func (n *recordingNotifier) Error(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) all() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

func newTestController(dev Device) (*Controller, *statePreview, *recordingNotifier, *[]*media.ImageBlob) {
	n := &recordingNotifier{}
	p := &statePreview{}
	var captured []*media.ImageBlob
	c := NewController(dev, p, n, func(b *media.ImageBlob) error {
		captured = append(captured, b)
		return nil
	})
	p.ctrl = c
	return c, p, n, &captured
}

func TestController_CaptureReleasesEveryTrackOnce(t *testing.T) {
	stream := newFakeStream(64, 48)
	dev := &fakeDevice{stream: stream}
	c, p, n, captured := newTestController(dev)

	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	if c.State() != StatePreviewing {
		t.Fatalf("expected previewing, got %s", c.State())
	}
	if dev.last.Facing != FacingEnvironment || !dev.last.Video || dev.last.Audio {
		t.Errorf("unexpected constraints: %+v", dev.last)
	}
	if p.seen != StatePreviewing {
		t.Errorf("preview attached while %s, want previewing", p.seen)
	}

	if err := c.Capture(); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("expected closed after capture, got %s", c.State())
	}
	for i, tr := range stream.tracks {
		if tr.count() != 1 {
			t.Errorf("track %d stopped %d times, want 1", i, tr.count())
		}
	}
	if p.detaches != 1 {
		t.Errorf("expected one detach, got %d", p.detaches)
	}

	if len(*captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(*captured))
	}
	blob := (*captured)[0]
	if blob.MediaType() != "image/jpeg" || blob.Filename() != media.CaptureFilename || blob.Size() == 0 {
		t.Errorf("unexpected capture blob: %s %s %d", blob.MediaType(), blob.Filename(), blob.Size())
	}
	if len(n.all()) != 0 {
		t.Errorf("unexpected notifications: %v", n.all())
	}

	// Cancelling afterwards must not stop anything again.
	c.Cancel()
	for i, tr := range stream.tracks {
		if tr.count() != 1 {
			t.Errorf("track %d stopped %d times after cancel, want 1", i, tr.count())
		}
	}
}

func TestController_StartWhilePreviewingIsNoop(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream(8, 8)}
	c, p, _, _ := newTestController(dev)

	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if dev.openCount() != 1 {
		t.Errorf("expected one open, got %d", dev.openCount())
	}
	if p.attaches != 1 {
		t.Errorf("expected one attach, got %d", p.attaches)
	}
	if c.State() != StatePreviewing {
		t.Errorf("expected previewing, got %s", c.State())
	}
}

func TestController_AcquisitionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"permission denied", ErrPermissionDenied},
		{"no device", ErrNoDevice},
		{"other", stderrors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p, n, _ := newTestController(&fakeDevice{err: tt.err})

			err := c.StartCapture(context.Background())
			if !errors.Is(err, errors.ErrCameraUnavailable) {
				t.Fatalf("expected camera unavailable, got %v", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("cause lost: %v", err)
			}
			if c.State() != StateClosed {
				t.Errorf("expected closed, got %s", c.State())
			}
			if p.attaches != 0 {
				t.Errorf("preview attached on failure")
			}
			errs := n.all()
			if len(errs) != 1 || errors.KindOf(errs[0]) != errors.KindCameraUnavailable {
				t.Errorf("expected one camera unavailable notification, got %v", errs)
			}
		})
	}
}

func TestController_AttachFailureReleasesStream(t *testing.T) {
	stream := newFakeStream(8, 8)
	c, p, n, _ := newTestController(&fakeDevice{stream: stream})
	p.attachErr = stderrors.New("no display")

	err := c.StartCapture(context.Background())
	if !errors.Is(err, errors.ErrCameraUnavailable) {
		t.Fatalf("expected camera unavailable, got %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
	for i, tr := range stream.tracks {
		if tr.count() != 1 {
			t.Errorf("track %d stopped %d times, want 1", i, tr.count())
		}
	}
	if len(n.all()) != 1 {
		t.Errorf("expected one notification, got %d", len(n.all()))
	}
}

func TestController_EmptyFrameKeepsPreviewOpen(t *testing.T) {
	stream := newFakeStream(8, 8)
	stream.frame = image.NewRGBA(image.Rectangle{})
	stream.width, stream.height = 0, 0
	c, _, n, captured := newTestController(&fakeDevice{stream: stream})

	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}

	err := c.Capture()
	if !errors.Is(err, errors.ErrCaptureFailed) {
		t.Fatalf("expected capture failed, got %v", err)
	}
	if c.State() != StatePreviewing {
		t.Errorf("expected preview to stay open, got %s", c.State())
	}
	for _, tr := range stream.tracks {
		if tr.count() != 0 {
			t.Errorf("track stopped after failed capture")
		}
	}
	if len(*captured) != 0 {
		t.Errorf("failed capture delivered a blob")
	}
	if errs := n.all(); len(errs) != 1 || errors.KindOf(errs[0]) != errors.KindCaptureFailed {
		t.Errorf("expected one capture failed notification, got %v", errs)
	}

	// A good frame on retry succeeds.
	stream.frame = image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := c.Capture(); err != nil {
		t.Fatalf("retry capture: %v", err)
	}
	if len(*captured) != 1 {
		t.Errorf("expected one capture after retry, got %d", len(*captured))
	}
}

func TestController_CaptureWhileClosed(t *testing.T) {
	c, _, _, _ := newTestController(&fakeDevice{stream: newFakeStream(4, 4)})
	if err := c.Capture(); !errors.Is(err, errors.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestController_CancelWhilePreviewing(t *testing.T) {
	stream := newFakeStream(8, 8)
	c, p, n, captured := newTestController(&fakeDevice{stream: stream})

	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	c.Cancel()

	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
	for i, tr := range stream.tracks {
		if tr.count() != 1 {
			t.Errorf("track %d stopped %d times, want 1", i, tr.count())
		}
	}
	if p.detaches != 1 {
		t.Errorf("expected one detach, got %d", p.detaches)
	}
	if len(*captured) != 0 || len(n.all()) != 0 {
		t.Errorf("cancel produced output")
	}
}

func TestController_CancelWhileRequesting(t *testing.T) {
	stream := newFakeStream(8, 8)
	dev := &fakeDevice{
		stream: stream,
		gate:   make(chan struct{}),
		called: make(chan struct{}),
	}
	c, p, n, _ := newTestController(dev)

	done := make(chan error, 1)
	go func() { done <- c.StartCapture(context.Background()) }()

	select {
	case <-dev.called:
	case <-time.After(time.Second):
		t.Fatal("device never opened")
	}
	if c.State() != StateRequesting {
		t.Fatalf("expected requesting, got %s", c.State())
	}

	c.Cancel()
	if c.State() != StateClosed {
		t.Errorf("expected closed after cancel, got %s", c.State())
	}
	close(dev.gate)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("late grant should not fail: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("start capture did not return")
	}

	if c.State() != StateClosed {
		t.Errorf("late grant reopened the preview: %s", c.State())
	}
	if p.attaches != 0 {
		t.Errorf("late stream was attached")
	}
	for i, tr := range stream.tracks {
		if tr.count() != 1 {
			t.Errorf("late track %d stopped %d times, want 1", i, tr.count())
		}
	}
	if len(n.all()) != 0 {
		t.Errorf("cancel should not notify: %v", n.all())
	}
}

func TestController_CancelWhileClosed(t *testing.T) {
	c, p, _, _ := newTestController(&fakeDevice{stream: newFakeStream(4, 4)})
	c.Cancel()
	c.Cancel()
	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
	if p.detaches != 0 {
		t.Errorf("unexpected detach")
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		from    State
		ev      Event
		want    State
		wantErr bool
	}{
		{StateClosed, EventStartRequested, StateRequesting, false},
		{StateRequesting, EventStreamGranted, StatePreviewing, false},
		{StateRequesting, EventStreamDenied, StateClosed, false},
		{StatePreviewing, EventFrameCaptured, StateClosed, false},
		{StatePreviewing, EventCancelled, StateClosed, false},
		{StateClosed, EventFrameCaptured, StateClosed, true},
		{StatePreviewing, EventStartRequested, StatePreviewing, true},
	}

	for _, tt := range tests {
		got, err := reduce(tt.from, tt.ev)
		if (err != nil) != tt.wantErr {
			t.Errorf("reduce(%s, %s) error = %v, wantErr %v", tt.from, tt.ev, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("reduce(%s, %s) = %s, want %s", tt.from, tt.ev, got, tt.want)
		}
	}
}
