// Package session holds the single in-memory conversion session: which image is
// selected, whether a conversion is in flight and what it produced.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/artifact"
	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/notify"
)

// Converter turns an image into a validated result.
type Converter interface {
	Convert(ctx context.Context, blob *media.ImageBlob) (*convert.Result, error)
}

// Session sequences selection, conversion and download. All state changes go
// through Dispatch; at most one conversion is in flight.
type Session struct {
	converter Converter
	notifier  notify.Notifier
	pretty    bool

	mu    sync.Mutex
	state State
}

// Options tune a Session.
type Options struct {
	// Pretty indents the downloaded document.
	Pretty bool
}

// New creates an idle session.
func New(converter Converter, notifier notify.Notifier, opts Options) *Session {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Session{
		converter: converter,
		notifier:  notifier,
		pretty:    opts.Pretty,
		state:     State{Phase: PhaseIdle},
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies ev. A rejected event leaves the state untouched.
func (s *Session) Dispatch(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := reduce(s.state, ev)
	if err != nil {
		slog.Warn("session_event_rejected", "state", s.state.Phase, "event", fmt.Sprintf("%T", ev), "error", err)
		return err
	}
	slog.Info("session_transition", "from", s.state.Phase, "to", next.Phase)
	s.state = next
	return nil
}

// SelectImage makes blob the current image. It is rejected with ErrBusy while
// a conversion is running.
func (s *Session) SelectImage(blob *media.ImageBlob) error {
	if err := s.Dispatch(ImageSelected{Blob: blob}); err != nil {
		s.notifier.Error(err)
		return err
	}
	return nil
}

// Convert submits the selected image and waits for the outcome. The session
// ends in Ready or Failed; the returned error is the conversion failure.
func (s *Session) Convert(ctx context.Context) error {
	if err := s.Dispatch(SubmitRequested{}); err != nil {
		s.notifier.Error(err)
		return err
	}
	blob := s.State().Blob

	res, err := s.converter.Convert(ctx, blob)
	if err != nil {
		if derr := s.Dispatch(ConversionFailed{Err: err}); derr != nil {
			return derr
		}
		s.notifier.Error(err)
		return err
	}

	if err := s.Dispatch(ConversionSucceeded{Result: res}); err != nil {
		return err
	}
	if st := s.State(); st.Phase == PhaseFailed {
		s.notifier.Error(st.Err)
		return st.Err
	}

	s.notifier.Success("Conversion successful!")
	return nil
}

// Download serializes the ready result and hands it to sink. The session state
// does not change.
func (s *Session) Download(ctx context.Context, sink artifact.Sink) (string, error) {
	st := s.State()
	if st.Phase != PhaseReady {
		err := errors.New(errors.ErrInvalidState, fmt.Sprintf("nothing to download in %s", st.Phase))
		s.notifier.Error(err)
		return "", err
	}

	a, err := artifact.Prepare(st.Result, s.pretty)
	if err != nil {
		s.notifier.Error(err)
		return "", err
	}

	location, err := sink.Save(ctx, a)
	if err != nil {
		s.notifier.Error(err)
		return "", err
	}

	s.notifier.Success(fmt.Sprintf("Saved %s to %s", a.Name, location))
	return location, nil
}
