package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// StillDevice serves a fixed image as a one-track video stream. It stands in
// for a real camera on headless machines.
type StillDevice struct {
	Path string
}

// Open decodes the image. A missing file is reported as ErrNoDevice and an
// unreadable one as ErrPermissionDenied.
func (d *StillDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video {
		return nil, fmt.Errorf("%w: video not requested", ErrNoDevice)
	}

	f, err := os.Open(d.Path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, errors.Wrap(err, "decode still source"))
	}

	slog.Info("camera_still_opened", "path", d.Path, "format", format, "facing", c.Facing,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	s := &stillStream{img: img}
	s.track = newVideoTrack(s.end)
	return s, nil
}

type stillStream struct {
	img   image.Image
	track *videoTrack

	mu    sync.Mutex
	ended bool
}

func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) Ready(ctx context.Context) (int, int, error) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, fmt.Errorf("stream ended")
	}
	return s.img, nil
}

func (s *stillStream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}
