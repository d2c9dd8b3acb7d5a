package camera

import (
	"log/slog"
	"sync"
)

// LogPreview is a render target for terminals without a display. It only
// records that a stream is attached.
type LogPreview struct {
	mu       sync.Mutex
	attached bool
}

func (p *LogPreview) Attach(s Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = true
	slog.Info("camera_preview_attached", "tracks", len(s.Tracks()))
	return nil
}

func (p *LogPreview) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached {
		slog.Info("camera_preview_detached")
	}
	p.attached = false
}

// Attached reports whether a stream is currently attached.
func (p *LogPreview) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}
