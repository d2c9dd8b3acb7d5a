// Package input funnels the three ways of picking an image (file chooser,
// drag-and-drop, camera) into one validated selection.
package input

import (
	"log/slog"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/notify"
	"github.com/excaliboard/excaliboard/pkg/security"
)

// Selector receives validated images.
type Selector interface {
	SelectImage(blob *media.ImageBlob) error
}

// Origin tags where a blob came from.
type Origin string

const (
	OriginFile    Origin = "file"
	OriginDrop    Origin = "drop"
	OriginCapture Origin = "capture"
)

// Source validates incoming blobs and forwards them in arrival order.
type Source struct {
	validator *security.Validator
	selector  Selector
	notifier  notify.Notifier

	mu       sync.Mutex
	dragging bool
}

// NewSource creates a source forwarding to selector.
func NewSource(validator *security.Validator, selector Selector, notifier notify.Notifier) *Source {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Source{validator: validator, selector: selector, notifier: notifier}
}

// FileChosen handles a file-picker selection.
func (s *Source) FileChosen(blob *media.ImageBlob) error {
	return s.forward(OriginFile, blob)
}

// FilesDropped handles a drop. Only the first blob is used.
func (s *Source) FilesDropped(blobs []*media.ImageBlob) error {
	s.mu.Lock()
	s.dragging = false
	s.mu.Unlock()

	if len(blobs) == 0 {
		return nil
	}
	if len(blobs) > 1 {
		slog.Warn("input_extra_files_ignored", "used", blobs[0].Filename(), "ignored", len(blobs)-1)
	}
	return s.forward(OriginDrop, blobs[0])
}

// Captured handles a camera still.
func (s *Source) Captured(blob *media.ImageBlob) error {
	return s.forward(OriginCapture, blob)
}

// DragOver sets the drop hint.
func (s *Source) DragOver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = true
}

// DragLeave clears the drop hint.
func (s *Source) DragLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
}

// Dragging reports whether something is being dragged over the drop target.
func (s *Source) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// forward holds the lock for the whole hand-off so selections are applied in
// the order they arrived.
func (s *Source) forward(origin Origin, blob *media.ImageBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid, err := s.validator.Validate(blob)
	if err != nil {
		s.notifier.Error(err)
		return err
	}

	slog.Info("image_selected", "origin", origin, "filename", valid.Filename(), "media_type", valid.MediaType())
	// The selector reports its own rejections.
	if err := s.selector.SelectImage(valid); err != nil {
		return errors.Wrap(err, "selection rejected")
	}
	return nil
}
