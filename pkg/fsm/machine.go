// Package fsm implements the conversion run as a finite state machine.
// It orchestrates request encoding, the single submission to the conversion
// service and response normalization using the superfly/fsm library.
package fsm

import (
	"context"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/db"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/superfly/fsm"
)

// Pipeline is the conversion client, split into the steps the run drives.
type Pipeline interface {
	Encode(blob *media.ImageBlob) ([]byte, string, error)
	Submit(ctx context.Context, body []byte, contentType string) ([]byte, error)
	Normalize(raw []byte) (*convert.Result, error)
}

// run holds the data a conversion passes between states. Bodies stay in
// process memory rather than in the FSM store.
type run struct {
	mu          sync.Mutex
	body        []byte
	contentType string
	raw         []byte
	result      *convert.Result
	err         error
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	repo     *db.Repository
	pipeline Pipeline
	runs     sync.Map
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(repo *db.Repository, pipeline Pipeline) *Machine {
	return &Machine{
		repo:     repo,
		pipeline: pipeline,
	}
}

// Register registers the conversion FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[ConversionRequest, ConversionResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[ConversionRequest, ConversionResponse](manager, Action).
		Start(StateEncode, m.handleEncode).
		To(StateSubmit, m.handleSubmit).
		To(StateNormalize, m.handleNormalize).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

func (m *Machine) track(runID string) *run {
	r := &run{}
	m.runs.Store(runID, r)
	return r
}

func (m *Machine) lookup(runID string) *run {
	v, ok := m.runs.Load(runID)
	if !ok {
		return nil
	}
	return v.(*run)
}

func (m *Machine) forget(runID string) {
	m.runs.Delete(runID)
}
