package session

import (
	"fmt"

	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
)

// Phase names a session state.
type Phase string

// Phases
const (
	PhaseIdle       Phase = "idle"
	PhaseSelected   Phase = "selected"
	PhaseConverting Phase = "converting"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

// State is a snapshot of the session. Blob is set in every phase but Idle,
// Result only in Ready and Err only in Failed.
type State struct {
	Phase  Phase
	Blob   *media.ImageBlob
	Result *convert.Result
	Err    error
}

func (s State) String() string {
	if s.Blob == nil {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s(%s)", s.Phase, s.Blob.Filename())
}

// Event drives a transition.
type Event interface {
	event()
}

// ImageSelected replaces the current image.
type ImageSelected struct {
	Blob *media.ImageBlob
}

// SubmitRequested starts conversion of the selected image.
type SubmitRequested struct{}

// ConversionSucceeded carries a validated result.
type ConversionSucceeded struct {
	Result *convert.Result
}

// ConversionFailed carries the failure of the in-flight request.
type ConversionFailed struct {
	Err error
}

func (ImageSelected) event()       {}
func (SubmitRequested) event()     {}
func (ConversionSucceeded) event() {}
func (ConversionFailed) event()    {}

// reduce computes the next state. It never mutates s and has no side effects.
func reduce(s State, ev Event) (State, error) {
	switch ev := ev.(type) {
	case ImageSelected:
		if s.Phase == PhaseConverting {
			return s, errors.Wrap(errors.ErrBusy, "cannot select a new image")
		}
		if ev.Blob == nil {
			return s, errors.New(errors.ErrInvalidState, "no image")
		}
		return State{Phase: PhaseSelected, Blob: ev.Blob}, nil

	case SubmitRequested:
		switch s.Phase {
		case PhaseSelected:
			return State{Phase: PhaseConverting, Blob: s.Blob}, nil
		case PhaseConverting:
			return s, errors.Wrap(errors.ErrBusy, "cannot submit")
		default:
			return s, errors.New(errors.ErrInvalidState, fmt.Sprintf("cannot submit from %s", s.Phase))
		}

	case ConversionSucceeded:
		if s.Phase != PhaseConverting {
			return s, errors.New(errors.ErrInvalidState, fmt.Sprintf("result arrived in %s", s.Phase))
		}
		if ev.Result == nil || ev.Result.Filename == "" || len(ev.Result.Contents) == 0 {
			return State{Phase: PhaseFailed, Blob: s.Blob, Err: errors.New(errors.ErrInvalidResponseShape, "incomplete result")}, nil
		}
		return State{Phase: PhaseReady, Blob: s.Blob, Result: ev.Result}, nil

	case ConversionFailed:
		if s.Phase != PhaseConverting {
			return s, errors.New(errors.ErrInvalidState, fmt.Sprintf("failure arrived in %s", s.Phase))
		}
		err := ev.Err
		if err == nil {
			err = errors.ErrConversionFailed
		}
		return State{Phase: PhaseFailed, Blob: s.Blob, Err: err}, nil

	default:
		return s, errors.New(errors.ErrInvalidState, fmt.Sprintf("unknown event %T", ev))
	}
}
