// Package camera captures a single still from a live video stream.
//
// A Controller owns at most one stream at a time. The stream is acquired on
// StartCapture and released on every way out of the preview: a successful
// Capture, Cancel, or a failed acquisition.
package camera

import (
	"context"
	stderrors "errors"
	"image"
	"sync"
)

// Facing is the preferred camera direction.
type Facing string

// FacingEnvironment is the rear camera, the one pointed at the whiteboard.
const FacingEnvironment Facing = "environment"

// Acquisition failures. Both surface to the user as camera unavailable but
// are logged separately.
var (
	ErrPermissionDenied = stderrors.New("camera permission denied")
	ErrNoDevice         = stderrors.New("no camera device")
)

// Constraints describe the requested stream.
type Constraints struct {
	Video  bool
	Audio  bool
	Facing Facing
}

// Track is one media track of a stream.
type Track interface {
	Kind() string
	Stop()
}

// Stream is a live video stream.
type Stream interface {
	// Tracks lists every track that has to be stopped to release the device.
	Tracks() []Track
	// Ready blocks until the native frame size is known.
	Ready(ctx context.Context) (width, height int, err error)
	// Frame returns the current video frame.
	Frame() (image.Image, error)
}

// Device grants streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Preview is the render target a granted stream is attached to.
type Preview interface {
	Attach(s Stream) error
	Detach()
}

// videoTrack is a track whose Stop runs onStop once.
type videoTrack struct {
	once   sync.Once
	onStop func()
}

func newVideoTrack(onStop func()) *videoTrack {
	return &videoTrack{onStop: onStop}
}

func (t *videoTrack) Kind() string { return "video" }

func (t *videoTrack) Stop() {
	t.once.Do(func() {
		if t.onStop != nil {
			t.onStop()
		}
	})
}
