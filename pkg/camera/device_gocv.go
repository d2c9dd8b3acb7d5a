//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// NewSystemDevice opens video capture device id through OpenCV.
func NewSystemDevice(id int) Device {
	return &cvDevice{id: id}
}

type cvDevice struct {
	id int
}

func (d *cvDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video {
		return nil, fmt.Errorf("%w: video not requested", ErrNoDevice)
	}
	// OpenCV has no notion of facing; the configured device id decides.
	if err := probe(d.id); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(d.id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrNoDevice, d.id)
	}

	slog.Info("camera_device_opened", "device", d.id, "facing", c.Facing)

	s := &cvStream{vc: vc, mat: gocv.NewMat()}
	s.track = newVideoTrack(s.close)
	return s, nil
}

// probe distinguishes a missing node from one the user may not read.
func probe(id int) error {
	path := fmt.Sprintf("/dev/video%d", id)
	f, err := os.Open(path)
	if err == nil {
		f.Close()
		return nil
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}
	if os.IsNotExist(err) {
		// Not every platform exposes /dev/video*; let OpenCV decide.
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoDevice, err)
}

type cvStream struct {
	track *videoTrack

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (s *cvStream) Tracks() []Track { return []Track{s.track} }

// Ready reads frames until one arrives and reports its size.
func (s *cvStream) Ready(ctx context.Context) (int, int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, 0, fmt.Errorf("stream closed")
		}
		ok := s.vc.Read(&s.mat)
		empty := s.mat.Empty()
		w, h := s.mat.Cols(), s.mat.Rows()
		s.mu.Unlock()

		if ok && !empty {
			return w, h, nil
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *cvStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("stream closed")
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("no frame available")
	}
	return s.mat.ToImage()
}

func (s *cvStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.mat.Close()
	if err := s.vc.Close(); err != nil {
		slog.Warn("camera_close_failed", "error", err)
	}
}

// NewWindowPreview shows the stream in a desktop window.
func NewWindowPreview(title string) Preview {
	return &windowPreview{title: title}
}

type windowPreview struct {
	title string

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (p *windowPreview) Attach(s Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return fmt.Errorf("preview already attached")
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.render(s, p.stop, p.done)
	return nil
}

func (p *windowPreview) render(s Stream, stop, done chan struct{}) {
	defer close(done)
	window := gocv.NewWindow(p.title)
	defer window.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, err := s.Frame()
		if err != nil {
			return
		}
		mat, err := gocv.ImageToMatRGB(frame)
		if err != nil {
			slog.Warn("camera_preview_frame_failed", "error", err)
			continue
		}
		window.IMShow(mat)
		mat.Close()
		window.WaitKey(33)
	}
}

func (p *windowPreview) Detach() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
