//go:build !gocv

package camera

import (
	"context"
	"fmt"
)

// NewSystemDevice returns a device that is never available. Live capture
// needs OpenCV.
func NewSystemDevice(id int) Device {
	return stubDevice{id: id}
}

type stubDevice struct {
	id int
}

func (d stubDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	return nil, fmt.Errorf("%w: device %d: built without OpenCV support, rebuild with -tags gocv", ErrNoDevice, d.id)
}

// NewWindowPreview falls back to logging when there is no window system.
func NewWindowPreview(title string) Preview {
	return &LogPreview{}
}
